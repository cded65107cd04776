package dispatch

import (
	"context"
	"fmt"
)

// JSONPublisher is the part of the MQTT client the event publisher uses.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// BusEvents publishes finished executions to one MQTT topic.
type BusEvents struct {
	client JSONPublisher
	topic  string
}

// NewBusEvents creates an EventPublisher for topic.
func NewBusEvents(client JSONPublisher, topic string) *BusEvents {
	return &BusEvents{client: client, topic: topic}
}

// PublishDispatch publishes exec as JSON.
func (b *BusEvents) PublishDispatch(exec *Execution) error {
	if err := b.client.PublishJSON(b.topic, exec, false); err != nil {
		return fmt.Errorf("publishing dispatch %s: %w", exec.ID, err)
	}
	return nil
}

// SelectionHandler returns an MQTT message handler that dispatches each
// received selection with SourceMQTT. ctx bounds every dispatch it starts.
func (d *Dispatcher) SelectionHandler(ctx context.Context) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		address, err := ParseSelection(payload)
		if err != nil {
			return fmt.Errorf("selection on %s: %w", topic, err)
		}
		exec := d.ResolveAndDispatch(ctx, address, SourceMQTT)
		if exec.Status == StatusNoMatch {
			return fmt.Errorf("selection %q: %s", address, exec.Error)
		}
		return nil
	}
}
