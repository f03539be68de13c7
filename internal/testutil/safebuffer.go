package testutil

import (
	"github.com/vk/fablego/internal/safebuffer"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
// Feature bodies run on worker goroutines, so the log writer must tolerate
// concurrent writes.
type SafeBuffer = safebuffer.SafeBuffer
