package state

type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusFailed  ExecutionStatus = "failed"
	StatusError   ExecutionStatus = "error"
	StatusSkipped ExecutionStatus = "skipped"
)

func (s ExecutionStatus) String() string {
	return string(s)
}

var AllStatuses = []ExecutionStatus{
	StatusSuccess,
	StatusFailed,
	StatusError,
	StatusSkipped,
}

func IsValid(s ExecutionStatus) bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// CountsAsFailure reports whether the status increments failure_count.
// StatusError covers dispatcher panics and execution timeouts; both are
// bookkept the same way as an ordinary failed run.
func (s ExecutionStatus) CountsAsFailure() bool {
	return s == StatusFailed || s == StatusError
}

// Recordable reports whether an execution with this status is written to
// history. A skipped run never started, so it leaves no record and does not
// touch task statistics.
func (s ExecutionStatus) Recordable() bool {
	return s != StatusSkipped
}
