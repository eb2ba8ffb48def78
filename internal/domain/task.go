package domain

import "errors"

type TaskState string

const (
	TaskPending     TaskState = "pending"
	TaskResolving   TaskState = "resolving"
	TaskSkipped     TaskState = "skipped"
	TaskNotReady    TaskState = "not_ready"
	TaskDownloading TaskState = "downloading"
	TaskDownloaded  TaskState = "downloaded"
	TaskMerged      TaskState = "merged"
	TaskFailed      TaskState = "failed"
)

func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskSkipped, TaskNotReady, TaskDownloaded, TaskMerged, TaskFailed:
		return true
	}
	return false
}

var ErrInvalidTransition = errors.New("invalid task state transition")

func CanTransition(from, to TaskState) bool {
	if from == to {
		return true
	}
	switch from {
	case TaskPending:
		return to == TaskResolving || to == TaskSkipped || to == TaskFailed
	case TaskResolving:
		// Resolution can reveal there is nothing to download for a track.
		return to == TaskDownloading || to == TaskSkipped || to == TaskNotReady || to == TaskFailed
	case TaskDownloading:
		return to == TaskDownloaded || to == TaskFailed
	case TaskDownloaded:
		return to == TaskMerged
	default:
		return false
	}
}

// TaskFailure identifies one failed task well enough to retry it by hand.
type TaskFailure struct {
	LiveID int64  `json:"liveId"`
	Course string `json:"course"`
	Date   string `json:"date"`
	Period int    `json:"period"`
	Track  Track  `json:"track"`
	Reason string `json:"reason"`
}

// RunStatistics aggregates per-task outcomes for one batch invocation.
// Scoped to the run; never persisted.
type RunStatistics struct {
	Total      int           `json:"total"`
	Downloaded int           `json:"downloaded"`
	Skipped    int           `json:"skipped"`
	NotReady   int           `json:"notReady"`
	Failed     int           `json:"failed"`
	Merged     int           `json:"merged"`
	Failures   []TaskFailure `json:"failures,omitempty"`
}
