package ports

import "errors"

// ErrAuth means the session collaborator could not produce valid
// credentials. Never retried by the engine.
var ErrAuth = errors.New("no valid session")

// ErrNotReady means the platform reports the recording as still being
// generated. Not an error of ours; the task is reported as "not yet
// available" rather than failed.
var ErrNotReady = errors.New("recording not yet generated")
