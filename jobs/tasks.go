package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskFleetWarmCache reloads every fleet collection into Redis.
	TaskFleetWarmCache = "fleet:warm_cache"
	// TaskMLTrain trains the schedule engine.
	TaskMLTrain = "ml:train"
	// TaskGenerateSchedule builds and stores the induction schedule of one day.
	TaskGenerateSchedule = "ml:generate_schedule"
)

// TaskTypes lists the task types the worker handles.
var TaskTypes = []string{TaskFleetWarmCache, TaskMLTrain, TaskGenerateSchedule}

// GenerateSchedulePayload selects the service day. An empty Date means the
// day after the job runs.
type GenerateSchedulePayload struct {
	Date string `json:"date,omitempty"`
}

// NewWarmCacheTask constructs a cache warm-up task.
func NewWarmCacheTask() *asynq.Task {
	return asynq.NewTask(TaskFleetWarmCache, nil, asynq.MaxRetry(2))
}

// NewTrainTask constructs a training task.
func NewTrainTask() *asynq.Task {
	return asynq.NewTask(TaskMLTrain, nil, asynq.MaxRetry(3))
}

// NewGenerateScheduleTask constructs a schedule generation task.
func NewGenerateScheduleTask(payload GenerateSchedulePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGenerateSchedule, data, asynq.MaxRetry(3)), nil
}

// NewTask builds a task of one of TaskTypes with default payload.
func NewTask(taskType string) (*asynq.Task, error) {
	switch taskType {
	case TaskFleetWarmCache:
		return NewWarmCacheTask(), nil
	case TaskMLTrain:
		return NewTrainTask(), nil
	case TaskGenerateSchedule:
		return NewGenerateScheduleTask(GenerateSchedulePayload{})
	}
	return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
}
