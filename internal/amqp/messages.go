package amqp

import (
	"encoding/json"
	"time"
)

// GoalUpdateMessage announces that a goal's cash-flow allocation changed.
// It carries only the goal id and a version counter; consumers fetch the
// full goal from the store before mirroring it.
type GoalUpdateMessage struct {
	GoalID    string    `json:"goal_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewGoalUpdateMessage creates an update message for a goal.
func NewGoalUpdateMessage(goalID string, version int64) *GoalUpdateMessage {
	return &GoalUpdateMessage{
		GoalID:    goalID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *GoalUpdateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// GoalUpdateMessageFromJSON parses a message from JSON bytes.
func GoalUpdateMessageFromJSON(data []byte) (*GoalUpdateMessage, error) {
	var msg GoalUpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
