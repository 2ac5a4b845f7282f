package gateway

import (
	"github.com/crowdchess/crowdchess/internal/models"
)

// MessageType identifies an observer push message.
type MessageType string

const (
	// MessageTypeSnapshot carries the full derived view; sent exactly once,
	// when the observer connects.
	MessageTypeSnapshot MessageType = "snapshot"
	// MessageTypeUpdate tells the observer a new version exists. The full
	// state is pulled separately, so the push payload stays constant-size
	// regardless of queue length.
	MessageTypeUpdate MessageType = "update"
)

// Message is the wire format pushed to observers.
type Message struct {
	Type    MessageType  `json:"type"`
	Version int64        `json:"version"`
	View    *models.View `json:"view,omitempty"`
}
