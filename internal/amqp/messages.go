package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"openbudget/internal/core"
)

// JobKind selects what a worker does with a sync job.
type JobKind string

const (
	JobSync  JobKind = "sync"
	JobRetry JobKind = "retry"
)

// SyncJobMessage carries one background sync or retry run.
// Request is empty for retry jobs.
type SyncJobMessage struct {
	JobID     string           `json:"job_id"`
	Kind      JobKind          `json:"kind"`
	Request   core.SyncRequest `json:"request"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewSyncJobMessage(jobID string, req core.SyncRequest) *SyncJobMessage {
	return &SyncJobMessage{
		JobID:     jobID,
		Kind:      JobSync,
		Request:   req,
		Timestamp: time.Now(),
	}
}

func NewRetryJobMessage(jobID string) *SyncJobMessage {
	return &SyncJobMessage{
		JobID:     jobID,
		Kind:      JobRetry,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SyncJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SyncJobMessageFromJSON decodes a message and rejects unknown kinds.
func SyncJobMessageFromJSON(data []byte) (*SyncJobMessage, error) {
	var msg SyncJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Kind {
	case JobSync, JobRetry:
	default:
		return nil, fmt.Errorf("unknown job kind %q", msg.Kind)
	}
	if msg.JobID == "" {
		return nil, fmt.Errorf("job id is empty")
	}
	return &msg, nil
}
