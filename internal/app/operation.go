package app

import "time"

// Operation statuses.
const (
	OperationSuccess = "success"
	OperationError   = "error"
)

// Operation tracks a single CLI invocation. Its ID tags every log line the
// invocation writes and every ingest record it creates.
type Operation struct {
	ID        string
	Name      string
	Status    string
	StartedAt time.Time
}

// NewOperation starts an operation named after the CLI command being run.
// The ID is the UTC start time, which sorts and greps well in the log.
func NewOperation(name string, now time.Time) *Operation {
	now = now.UTC()
	return &Operation{
		ID:        now.Format("20060102T150405Z"),
		Name:      name,
		Status:    OperationSuccess,
		StartedAt: now,
	}
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = OperationError
}

// Elapsed returns the time since the operation started.
func (op *Operation) Elapsed(now time.Time) time.Duration {
	return now.Sub(op.StartedAt)
}
