package p2p

import (
	"time"
)

// MessageType defines the type of QUIC message
type MessageType string

const (
	MessageTypePeerCountRequest  MessageType = "peer_count_request"
	MessageTypePeerCountResponse MessageType = "peer_count_response"
)

// QUICMessage represents a structured message sent over QUIC
type QUICMessage struct {
	Type      MessageType `json:"type"`
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// PeerCountData is the payload of a peer_count_response: how many peers the
// remote bootstrap node currently knows about.
type PeerCountData struct {
	PeerCount int `json:"peer_count"`
}

// NewQUICMessage creates a message with the current protocol version
func NewQUICMessage(msgType MessageType, data interface{}) *QUICMessage {
	return &QUICMessage{
		Type:      msgType,
		Version:   1,
		Timestamp: time.Now(),
		Data:      data,
	}
}
