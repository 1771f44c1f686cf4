package model

import (
	"sync"
	"sync/atomic"
)

// Signal values for ControlBlock.Signal.
const (
	SignalRun    uint32 = 0
	SignalPause  uint32 = 1
	SignalStop   uint32 = 2
	SignalCancel uint32 = 3
)

// ControlBlock is the small set of shared atomics and guarded
// collections through which a download's commands influence its
// workers. A single block is exclusively owned by the manager under
// the download's id; the engine and its workers hold shared
// read/update access for the duration of one run.
type ControlBlock struct {
	Signal          atomic.Uint32
	DownloadedBytes atomic.Int64
	Generation      atomic.Uint32

	mu              sync.Mutex
	completedChunks []int64
}

// NewControlBlock returns a fresh control block with signal=run and
// generation=0.
func NewControlBlock() *ControlBlock {
	return &ControlBlock{}
}

// ShouldContinue reports whether the signal is still "run".
func (c *ControlBlock) ShouldContinue() bool {
	return c.Signal.Load() == SignalRun
}

// AppendCompleted records a chunk index as fully downloaded.
func (c *ControlBlock) AppendCompleted(idx int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completedChunks = append(c.completedChunks, idx)
}

// CompletedChunks returns a snapshot copy of the completed-chunk list.
func (c *ControlBlock) CompletedChunks() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.completedChunks))
	copy(out, c.completedChunks)
	return out
}

// CompletedCount returns len(completedChunks) without a full copy.
func (c *ControlBlock) CompletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.completedChunks)
}

// SetCompletedChunks replaces the completed-chunk list, used when
// priming control state from persisted metadata on resume.
func (c *ControlBlock) SetCompletedChunks(chunks []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completedChunks = append([]int64(nil), chunks...)
}
