package scheduler

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskNegotiationExpire = "negotiations.expire"

type NegotiationExpirePayload struct {
	NegotiationID string `json:"negotiationId"`
}

func NewNegotiationExpireTask(payload NegotiationExpirePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNegotiationExpire, data), nil
}

func ParseNegotiationExpirePayload(task *asynq.Task) (NegotiationExpirePayload, error) {
	var payload NegotiationExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return NegotiationExpirePayload{}, err
	}
	return payload, nil
}

// expireTaskID makes scheduling idempotent per negotiation.
func expireTaskID(id uuid.UUID) string {
	return TaskNegotiationExpire + ":" + id.String()
}
