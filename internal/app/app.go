package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/fablego/internal/action"
	"github.com/vk/fablego/internal/bus"
	"github.com/vk/fablego/internal/constpool"
	"github.com/vk/fablego/internal/ctxlog"
	"github.com/vk/fablego/internal/program"
	"github.com/vk/fablego/internal/runtime"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle: the loaded program, the action registry, the event bus, the
// runtime and the services offered to action implementations.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	program  *program.Program
	registry *action.Registry
	bus      *bus.Bus
	runtime  *runtime.Runtime
	pool     *constpool.Pool
	contract cty.Value
	services *services
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry, bus
// and runtime. Startup problems — an unreadable program, a bad contract
// document, a registry that fails validation — are programmer/configuration
// errors and panic; the CLI entrypoint recovers them into a clean exit.
func NewApp(outW io.Writer, cfg *Config, modules ...action.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	prog, err := program.LoadPath(ctx, cfg.ProgramPath)
	if err != nil {
		panic(fmt.Errorf("failed to load program: %w", err))
	}
	logger.Debug("Program loaded.", "feature_sets", len(prog.FeatureSets))

	contract := cty.NilVal
	if cfg.ContractPath != "" {
		contract, err = loadContract(cfg.ContractPath)
		if err != nil {
			panic(fmt.Errorf("failed to load contract: %w", err))
		}
		logger.Debug("Contract document loaded.", "path", cfg.ContractPath)
	}

	reg := action.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All action modules registered.", "modules", len(modules), "actions", reg.Len())

	if err := reg.Validate(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Action registry validation passed.")

	b := bus.New()
	svcs := newServices(cfg, b)

	rt := runtime.New(runtime.Options{
		Registry:           reg,
		Bus:                b,
		Services:           svcs.byName,
		Logger:             logger,
		DefaultParallelism: cfg.Workers,
	})

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		program:  prog,
		registry: reg,
		bus:      b,
		runtime:  rt,
		pool:     constpool.New(),
		contract: contract,
		services: svcs,
	}
}

// loadContract reads a JSON contract document into a runtime value.
func loadContract(path string) (cty.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(data)
	if err != nil {
		return cty.NilVal, fmt.Errorf("contract %s is not valid JSON: %w", path, err)
	}
	v, err := ctyjson.Unmarshal(data, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("contract %s could not be decoded: %w", path, err)
	}
	return v, nil
}

// Registry returns the application's action registry. Primarily for testing.
func (a *App) Registry() *action.Registry {
	return a.registry
}

// Bus returns the application's event bus. Primarily for testing.
func (a *App) Bus() *bus.Bus {
	return a.bus
}

// Program returns the loaded program model. Primarily for testing.
func (a *App) Program() *program.Program {
	return a.program
}
