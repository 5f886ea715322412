package update

import "fmt"

// UpdateCheckError wraps a failed version check. It is logged and the
// check is retried on the next trigger.
type UpdateCheckError struct {
	Source string
	Err    error
}

func (e *UpdateCheckError) Error() string {
	return fmt.Sprintf("update check via %s failed: %v", e.Source, e.Err)
}

func (e *UpdateCheckError) Unwrap() error { return e.Err }

// UpdateApplyError wraps a failed activation. The process is reloaded
// regardless.
type UpdateApplyError struct {
	Err error
}

func (e *UpdateApplyError) Error() string {
	return fmt.Sprintf("update activation failed: %v", e.Err)
}

func (e *UpdateApplyError) Unwrap() error { return e.Err }
