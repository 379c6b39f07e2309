package interview

import "fmt"

// NotFoundError is returned when no session exists for the id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("interview session %s not found", e.ID)
}

// InvalidStateError is returned for an operation the session's current
// state does not allow.
type InvalidStateError struct {
	ID     string
	Op     string
	Status Status
	Reason string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s interview session %s in state %s", e.Op, e.ID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// BusyError is returned when another operation on the same session is in
// flight.
type BusyError struct {
	ID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("interview session %s is busy with another operation", e.ID)
}
