package providers

import (
	"context"
	"sync"
)

// Status is the outcome of an online provider lookup.
type Status int

const (
	// StatusSuccess means the provider returned usable data.
	StatusSuccess Status = iota
	// StatusNotFound means the provider answered but has no match.
	StatusNotFound
	// StatusTemporaryError means the lookup failed but may succeed later
	// (network failure, 5xx).
	StatusTemporaryError
	// StatusPermanentError means the provider is unusable for the remainder
	// of the process session (rate limited, auth failure).
	StatusPermanentError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusTemporaryError:
		return "temporary_error"
	case StatusPermanentError:
		return "permanent_error"
	default:
		return "unknown"
	}
}

// LyricsProvider looks up lyrics text for a song.
type LyricsProvider interface {
	Name() string
	Lookup(ctx context.Context, artist, title string) (string, Status)
}

// ArtistImageProvider looks up a portrait image for an artist.
type ArtistImageProvider interface {
	Name() string
	Lookup(ctx context.Context, artistName string) ([]byte, Status)
}

// SessionGate tracks providers disabled for the remainder of the process
// session. A provider that reports StatusPermanentError is never queried
// again until restart; other providers are unaffected.
type SessionGate struct {
	mu       sync.Mutex
	disabled map[string]struct{}
}

// NewSessionGate creates an empty gate.
func NewSessionGate() *SessionGate {
	return &SessionGate{disabled: make(map[string]struct{})}
}

// Enabled reports whether the named provider may still be queried.
func (g *SessionGate) Enabled(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, off := g.disabled[name]
	return !off
}

// Disable removes the named provider from service for this session.
func (g *SessionGate) Disable(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disabled[name] = struct{}{}
}

// Observe updates the gate from a lookup outcome and reports whether the
// provider was newly disabled by it.
func (g *SessionGate) Observe(name string, status Status) bool {
	if status != StatusPermanentError {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, off := g.disabled[name]; off {
		return false
	}
	g.disabled[name] = struct{}{}
	return true
}
