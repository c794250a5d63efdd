package domain

// Dispatch statuses reported per platform by the orchestrator.
const (
	DispatchTriggered     = "triggered"
	DispatchTriggerFailed = "trigger_failed"
)

// DispatchOutcome is the result of one per-platform worker dispatch. It is
// either Sent (the request left this process, possibly unanswered) or
// NotSent (the worker could not be started).
type DispatchOutcome interface {
	isDispatchOutcome()
}

// Sent means the worker request was accepted or is still in flight.
// TimedOut is set when the client gave up waiting; the worker keeps running.
type Sent struct {
	HTTPStatus int
	TimedOut   bool
}

// NotSent means the worker was never started.
type NotSent struct {
	Reason     string
	HTTPStatus int
}

func (Sent) isDispatchOutcome()    {}
func (NotSent) isDispatchOutcome() {}

// DispatchStatus maps an outcome to its reported status string.
func DispatchStatus(o DispatchOutcome) string {
	if _, ok := o.(Sent); ok {
		return DispatchTriggered
	}
	return DispatchTriggerFailed
}
