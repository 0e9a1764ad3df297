package mqtt

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fieldmock/internal/current"
)

// Publisher forwards poller documents to the broker. It satisfies the
// poller's sink interface so each generated document fans out to
// per-sensor state topics plus one aggregated document topic.
type Publisher struct {
	client *Client
	logger *zap.SugaredLogger
}

// NewPublisher creates a new Publisher instance
func NewPublisher(client *Client, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger,
	}
}

// sensorState is the per-sensor payload published to sensor/<id>/state.
type sensorState struct {
	Name        string   `json:"name"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Status      string   `json:"status"`
	Timestamp   string   `json:"timestamp"`
}

// PublishDocument publishes one poller document: the full document on
// the aggregated topic and a compact state per sensor. Per-sensor
// failures are logged and skipped so one bad sensor does not block the
// rest.
func (p *Publisher) PublishDocument(doc current.Document) {
	if !p.client.IsConnected() {
		return
	}

	if payload, err := json.Marshal(doc); err == nil {
		if err := p.client.Publish("current", payload); err != nil {
			p.logger.Warnw("mqtt publish document failed", "error", err)
		}
	}

	for i := range doc.Sensors {
		s := &doc.Sensors[i]
		state := sensorState{
			Name:        s.Name,
			Temperature: s.Temperature.Value,
			Humidity:    s.Humidity.Value,
			Status:      string(s.CombinedStatus),
			Timestamp:   doc.Timestamp,
		}
		payload, err := json.Marshal(state)
		if err != nil {
			continue
		}
		topic := fmt.Sprintf("sensor/%d/state", s.ID)
		if err := p.client.Publish(topic, payload); err != nil {
			p.logger.Warnw("mqtt publish sensor failed", "sensor", s.ID, "error", err)
		}
	}
}

// PublishAvailability marks the harness online or offline on the
// availability topic. Retained so late subscribers see the last state.
func (p *Publisher) PublishAvailability(online bool) error {
	payload := "offline"
	if online {
		payload = "online"
	}
	return p.client.PublishWithQoS("availability", 1, true, payload)
}
