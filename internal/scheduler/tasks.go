package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAssignmentDaily = "assignment.daily"

const TaskAssignmentContinue = "assignment.continue"

type AssignmentContinuePayload struct {
	BatchID string `json:"batchId"`
}

func NewAssignmentDailyTask() *asynq.Task {
	return asynq.NewTask(TaskAssignmentDaily, nil)
}

func NewAssignmentContinueTask(payload AssignmentContinuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssignmentContinue, data), nil
}

func ParseAssignmentContinuePayload(task *asynq.Task) (AssignmentContinuePayload, error) {
	var payload AssignmentContinuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AssignmentContinuePayload{}, err
	}
	return payload, nil
}
