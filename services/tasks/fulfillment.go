package tasks

import (
	"encoding/json"
	"time"

	"oplugy/models"

	"github.com/hibiken/asynq"
)

const TypeFulfillmentNotify = "fulfillment:notify"

func NewFulfillmentTask(payload models.Fulfillment, delay time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeFulfillmentNotify, b)
	opts := []asynq.Option{
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
		// One notification per payment reference.
		asynq.TaskID(payload.Reference),
	}

	return task, opts, nil
}

// ParseFulfillment decodes a fulfillment task payload.
func ParseFulfillment(task *asynq.Task) (models.Fulfillment, error) {
	var p models.Fulfillment
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}
