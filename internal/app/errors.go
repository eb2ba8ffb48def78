package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/xduvd/xduvd/internal/ports"
)

// FailureKind classifies a task failure for retry and reporting
// decisions. Stable codes, persisted into event payloads.
type FailureKind string

const (
	// FailTransient covers timeouts, resets and 5xx/429 responses;
	// retried with backoff up to the attempt budget.
	FailTransient FailureKind = "network_transient"
	// FailPermanent covers 4xx responses other than 429; never retried.
	FailPermanent FailureKind = "network_permanent"
	// FailNotReady means the platform has not generated the recording.
	FailNotReady FailureKind = "content_not_ready"
	// FailIntegrity means a completed file failed size or header
	// validation; re-attempted with a clean temp file up to the
	// attempt budget.
	FailIntegrity FailureKind = "integrity"
	// FailFilesystem covers directory and permission problems; fatal to
	// the task, never to the batch.
	FailFilesystem FailureKind = "filesystem"
)

// TaskError carries the failure taxonomy up to the scheduler, which is
// the only layer that turns errors into user-facing output.
type TaskError struct {
	Kind FailureKind
	Err  error
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *TaskError) Unwrap() error { return e.Err }

func failure(kind FailureKind, err error) *TaskError {
	return &TaskError{Kind: kind, Err: err}
}

// Retryable reports whether another attempt may succeed. Cancellation
// and content-not-ready never warrant one; raw connection-level errors
// always do.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return KindOf(err) == FailTransient
}

// KindOf extracts the failure kind, defaulting to transient for raw
// connection-level errors.
func KindOf(err error) FailureKind {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, ports.ErrNotReady) {
		return FailNotReady
	}
	if errors.Is(err, ports.ErrAuth) {
		return FailPermanent
	}
	return FailTransient
}

// ClassifyStatus maps an HTTP response status to a failure kind.
// 429 stays retryable; other 4xx are terminal.
func ClassifyStatus(status int) FailureKind {
	if status == http.StatusTooManyRequests {
		return FailTransient
	}
	if status >= 400 && status < 500 {
		return FailPermanent
	}
	return FailTransient
}

// transient wraps a transport error, keeping cancellation visible so the
// retry loop stops instead of hammering a dead context.
func transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return failure(FailTransient, err)
}
