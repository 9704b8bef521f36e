// Package events provides pub/sub distribution of run events to live
// subscribers, decoupled from the durable audit log.
package events

import (
	"context"

	"github.com/stepflow/stepflow/pkg/schema"
)

// Filter specifies which events a subscriber wants to receive.
type Filter struct {
	RunID      string   `json:"run_id,omitempty"`
	StepID     string   `json:"step_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// Hub provides pub/sub for real-time run events.
type Hub interface {
	Publish(ctx context.Context, event schema.Event) error
	Subscribe(ctx context.Context, filter Filter) (<-chan schema.Event, func(), error)
}
