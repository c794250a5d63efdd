package domain

import "strconv"

// BatchStatus is the lifecycle state of an assignment batch.
type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusProcessing BatchStatus = "processing"
	StatusPaused     BatchStatus = "paused"
	StatusCompleted  BatchStatus = "completed"
	StatusFailed     BatchStatus = "failed"
	StatusCancelled  BatchStatus = "cancelled"
)

// allowedTransitions lists every legal status change. Terminal statuses have none.
var allowedTransitions = map[BatchStatus][]BatchStatus{
	StatusPending:    {StatusProcessing, StatusPaused, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusPaused, StatusCancelled, StatusCompleted, StatusFailed},
	StatusPaused:     {StatusProcessing, StatusCancelled},
}

// ParseBatchStatus validates a raw status string.
func ParseBatchStatus(raw string) (BatchStatus, bool) {
	status := BatchStatus(raw)
	switch status {
	case StatusPending, StatusProcessing, StatusPaused, StatusCompleted, StatusFailed, StatusCancelled:
		return status, true
	}
	return "", false
}

// IsTerminal reports whether the batch can never change again.
func (s BatchStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether a worker may pick the batch up.
func (s BatchStatus) IsActive() bool {
	return s == StatusPending || s == StatusProcessing
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to BatchStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func itoa(v int) string { return strconv.Itoa(v) }
