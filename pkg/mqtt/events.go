package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
)

// EventPublisher announces installed global models on a fixed topic.
type EventPublisher struct {
	ps    PubSub
	topic string
}

func NewEventPublisher(ps PubSub, topic string) (*EventPublisher, error) {
	if topic == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, errEmptyTopic)
	}

	return &EventPublisher{ps: ps, topic: topic}, nil
}

func (p *EventPublisher) PublishAggregation(ctx context.Context, event fl.AggregationEvent) error {
	if err := p.ps.Publish(ctx, p.topic, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrTransport, fmt.Errorf("failed to publish to %q: %w", p.topic, err))
	}

	return nil
}

// EventHandler adapts fn into a Handler that decodes aggregation events.
func EventHandler(fn func(fl.AggregationEvent) error) Handler {
	return func(_ string, payload []byte) error {
		var event fl.AggregationEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("failed to decode aggregation event: %w", err))
		}

		return fn(event)
	}
}
