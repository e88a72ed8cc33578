package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"payoff/internal/core"
)

// SimulationRequestMessage asks the worker to execute a recorded run.
// The worker loads debts and the exact strategy from the run store; the
// strategy here is informational.
type SimulationRequestMessage struct {
	RunID     string        `json:"runId"`
	Strategy  core.Strategy `json:"strategy"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewSimulationRequestMessage creates a message stamped with the current time
func NewSimulationRequestMessage(runID string, strategy core.Strategy) *SimulationRequestMessage {
	return &SimulationRequestMessage{
		RunID:     runID,
		Strategy:  strategy,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SimulationRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SimulationRequestMessageFromJSON decodes a message and requires a run id
func SimulationRequestMessageFromJSON(data []byte) (*SimulationRequestMessage, error) {
	var msg SimulationRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RunID == "" {
		return nil, errors.New("message has no run id")
	}
	return &msg, nil
}
