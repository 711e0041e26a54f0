package errors

import "log"

// SideEffect is the outcome of a non-critical write. Failures are recorded and
// logged but never propagated, so the distinction between critical and
// best-effort persistence is visible in the type system rather than implied.
type SideEffect struct {
	// Component and Op identify the attempted write for logging
	Component string
	Op        string

	// Err is the recorded failure, nil on success
	Err error
}

// OK reports whether the side effect succeeded.
func (s SideEffect) OK() bool {
	return s.Err == nil
}

// Attempt runs fn as a best-effort side effect. A failure is logged with the
// component and operation and captured in the returned SideEffect; it never
// fails the primary operation.
func Attempt(component, op string, fn func() error) SideEffect {
	err := fn()
	if err != nil {
		log.Printf("[WARN] %s: best-effort %s failed (non-fatal): %v", component, op, err)
	}
	return SideEffect{Component: component, Op: op, Err: err}
}
