// Package safebuffer provides a thread-safe buffer for capturing log output
// in tests. It lives in a leaf package so that in-package tests of packages
// the test harness depends on can use it without an import cycle.
package safebuffer

import (
	"bytes"
	"sync"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
// Feature bodies run on worker goroutines, so the log writer must tolerate
// concurrent writes.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}
