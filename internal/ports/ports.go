package ports

import (
	"context"

	"github.com/xduvd/xduvd/internal/domain"
)

// SessionProvider supplies the authenticated request headers for the
// streaming platform. Acquiring a session (login, CAPTCHA) is someone
// else's job; the engine only consumes the result and never retries
// auth failures.
type SessionProvider interface {
	// SessionHeaders returns header name -> value, including the
	// assembled Cookie. Fails with ErrAuth when no valid session exists.
	SessionHeaders(ctx context.Context) (map[string]string, error)
}

// LinkSource resolves the two track URLs for a class period. One
// implementation exists per API mode; the scheduler picks one per batch.
type LinkSource interface {
	// Resolve returns the slide-capture and instructor-camera URLs.
	// Either may be empty when the platform has no recording for that
	// track. Fails with ErrNotReady while the recording is still being
	// generated.
	Resolve(ctx context.Context, p domain.ClassPeriodEntry) (slides, camera string, err error)
}

// StreamConcatenator losslessly joins container files in order.
// Contract: a nil error means output exists and is complete; on error
// the inputs are untouched.
type StreamConcatenator interface {
	Concat(ctx context.Context, inputs []string, output string) error
}

// PlaylistFetcher downloads a playlist-manifest stream to dir/name
// via an external tool (legacy API mode only).
type PlaylistFetcher interface {
	Fetch(ctx context.Context, url, dir, name string) error
}

type EventBus interface {
	Publish(topic string, payload []byte)
	Subscribe() (ch <-chan Event, cancel func())
}

type Event struct {
	Topic   string
	Payload []byte
}
