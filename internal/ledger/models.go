package ledger

import "time"

// Job status values. Transitions only move forward: pending to processing,
// processing to completed or failed. Terminal rows never change again.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Track is a registered audio file, identified by its content hash.
type Track struct {
	ID          int64
	FilePath    string
	ContentHash string
	Artist      string
	Title       string
	Genre       string
	BPM         float64
	Key         string
	FileSize    int64
	AddedAt     time.Time
}

// Job is one separation attempt for a track.
type Job struct {
	ID             int64
	TrackID        int64
	Engine         string
	Status         string
	ErrorMessage   string
	OutputDir      string
	ElapsedSeconds float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    time.Time
}

// StemScore is a recorded quality measurement for one stem of a job.
type StemScore struct {
	JobID    int64
	StemName string
	Score    float64
}

// Stats summarizes the ledger contents.
type Stats struct {
	Tracks        int64
	Jobs          int64
	CompletedJobs int64
	FailedJobs    int64
	PendingJobs   int64
	AverageScores map[string]float64
}
