package protocol

import (
	"errors"
	"sync"
)

// ErrBuildFailed is returned when neither the alternate builder nor
// Fallback can produce an envelope with a non-empty "op" field.
var ErrBuildFailed = errors.New("protocol: failed to build a valid protocol message")

// Resolver selects between an optional alternate Builder implementation
// (loaded asynchronously, e.g. at startup) and Fallback. It matches
// §4.5: "if an alternative implementation fails to produce an envelope
// with a non-empty string op field, the core must retry the same call
// through the fallback, and fail hard if that also yields no envelope."
type Resolver struct {
	mu  sync.RWMutex
	alt Builder
}

// NewResolver returns a Resolver that starts out using only Fallback.
func NewResolver() *Resolver {
	return &Resolver{}
}

// SetAlternate installs an alternate Builder implementation. Passing nil
// reverts to Fallback only.
func (r *Resolver) SetAlternate(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alt = b
}

func (r *Resolver) alternate() Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alt
}

// Build tries the alternate builder (if any) via build, and falls back
// to Fallback if the alternate is absent or yields an envelope with no
// "op". It returns ErrBuildFailed only if Fallback itself fails to
// produce a usable envelope, which the pure Fallback implementation
// never does — this exists to keep the contract explicit for any future
// alternate Builder that also fails.
func (r *Resolver) Build(build func(Builder) Envelope) (Envelope, error) {
	if alt := r.alternate(); alt != nil {
		if e := build(alt); e.Op() != "" {
			return e, nil
		}
	}

	e := build(Fallback)
	if e.Op() == "" {
		return nil, ErrBuildFailed
	}
	return e, nil
}
