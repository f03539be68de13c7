package app

import (
	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/modules/core"
	"github.com/vk/fablego/modules/envvars"
	"github.com/vk/fablego/modules/fswatch"
	"github.com/vk/fablego/modules/httpcall"
	"github.com/vk/fablego/modules/httpserver"
	"github.com/vk/fablego/modules/pipeline"
	"github.com/vk/fablego/modules/shell"
	"github.com/vk/fablego/modules/socketio"
	"github.com/vk/fablego/modules/storage"
)

// coreModules is the definitive list of all action modules that are compiled
// into the fable binary.
var coreModules = []action.Module{
	&core.Module{},
	&pipeline.Module{},
	&storage.Module{},
	&envvars.Module{},
	&shell.Module{},
	&httpcall.Module{},
	&httpserver.Module{},
	&socketio.Module{},
	&fswatch.Module{},
}
