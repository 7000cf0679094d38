// Package backend describes whether an external dependency was configured at
// construction time, and the error taxonomy used when calling it.
package backend

// State is either Configured or Unconfigured. Components decide it once in
// their constructor and branch on it with a type switch.
type State[T any] interface {
	isState()
}

// Configured carries a usable handle to a hosted backend.
type Configured[T any] struct {
	Handle T
}

// Unconfigured records why no handle is available.
type Unconfigured[T any] struct {
	Reason string
}

func (Configured[T]) isState()   {}
func (Unconfigured[T]) isState() {}

// Use returns Configured when ok is true, otherwise Unconfigured with reason.
func Use[T any](handle T, ok bool, reason string) State[T] {
	if ok {
		return Configured[T]{Handle: handle}
	}
	return Unconfigured[T]{Reason: reason}
}

// None returns an Unconfigured state.
func None[T any](reason string) State[T] {
	return Unconfigured[T]{Reason: reason}
}

// IsConfigured reports whether s holds a handle. T cannot be inferred from a
// State value, so callers instantiate it: IsConfigured[Store](s).
func IsConfigured[T any](s State[T]) bool {
	_, ok := s.(Configured[T])
	return ok
}

// Reason returns the Unconfigured reason, or "" for a configured state.
func Reason[T any](s State[T]) string {
	if u, ok := s.(Unconfigured[T]); ok {
		return u.Reason
	}
	return ""
}
