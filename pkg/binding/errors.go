package binding

import (
	"errors"
	"fmt"
)

// ErrNoOverlap reports parameter data whose index matches no element of
// the declared index sets, which means it was read from the wrong table.
var ErrNoOverlap = errors.New("data and index sets do not overlap")

// Warning is a non-fatal binding problem. The affected name stays unbound
// and the generated program falls back to its literal default.
type Warning struct {
	Name    string
	Message string
}

// String implements fmt.Stringer.
func (w Warning) String() string {
	if w.Name == "" {
		return w.Message
	}
	return w.Name + ": " + w.Message
}

// Error is a binding failure. It is reported as a Warning unless the binder
// runs in strict mode.
type Error struct {
	Name    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("binding %s: %s", e.Name, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
