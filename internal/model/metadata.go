package model

import "time"

// Metadata is the persisted and in-memory description of a download.
// Invariants:
//   - CompletedChunks and IncompleteChunks are disjoint and together
//     cover {0 .. total_chunks-1}.
//   - DownloadedBytes equals the sum of completed chunk sizes while not
//     Completed, and equals TotalSize once Completed.
type Metadata struct {
	ID               string         `json:"id"`
	URL              string         `json:"url"`
	Filepath         string         `json:"filepath"`
	TotalSize        int64          `json:"total_size"`
	DownloadedBytes  int64          `json:"downloaded_bytes"`
	State            LifecycleState `json:"state"`
	ThreadCount      int            `json:"thread_count"`
	CompletedChunks  []int64        `json:"completed_chunks"`
	IncompleteChunks []int64        `json:"incomplete_chunks"`
	CreatedAt        time.Time      `json:"created_at"`
	PausedAt         *time.Time     `json:"paused_at,omitempty"`
	ResumedAt        *time.Time     `json:"resumed_at,omitempty"`
	StoppedAt        *time.Time     `json:"stopped_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage     string         `json:"error_message,omitempty"`
}

// New builds fresh Pending metadata for a download about to start.
// incompleteChunks should be {0 .. total_chunks-1}.
func New(id, url, filepath string, totalSize int64, threadCount int, incompleteChunks []int64) *Metadata {
	return &Metadata{
		ID:               id,
		URL:              url,
		Filepath:         filepath,
		TotalSize:        totalSize,
		State:            Pending,
		ThreadCount:      threadCount,
		CompletedChunks:  make([]int64, 0),
		IncompleteChunks: incompleteChunks,
		CreatedAt:        time.Now().UTC(),
	}
}

// ProgressPercentage returns 0 when TotalSize is 0 to avoid division by zero.
func (m *Metadata) ProgressPercentage() float64 {
	if m.TotalSize == 0 {
		return 0
	}
	return (float64(m.DownloadedBytes) / float64(m.TotalSize)) * 100
}

func (m *Metadata) Pause() {
	m.State = Paused
	now := time.Now().UTC()
	m.PausedAt = &now
}

func (m *Metadata) Resume() {
	m.State = Active
	now := time.Now().UTC()
	m.ResumedAt = &now
}

func (m *Metadata) Stop() {
	m.State = Stopped
	now := time.Now().UTC()
	m.StoppedAt = &now
}

func (m *Metadata) Complete() {
	m.State = Completed
	now := time.Now().UTC()
	m.CompletedAt = &now
}

func (m *Metadata) Fail(reason string) {
	m.State = Failed
	m.ErrorMessage = reason
}

func (m *Metadata) Cancel() {
	m.State = Cancelled
}

// Clone returns a deep-enough copy safe for a caller to mutate without
// affecting the registry's stored copy.
func (m *Metadata) Clone() *Metadata {
	c := *m
	c.CompletedChunks = append([]int64(nil), m.CompletedChunks...)
	c.IncompleteChunks = append([]int64(nil), m.IncompleteChunks...)
	return &c
}
