// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package chat

import (
	"encoding/json"
	"fmt"
)

// Wire type tags for broadcast events.
const (
	TypeConnected     = "connection"
	TypeNewMessage    = "newMessage"
	TypeDeleteMessage = "deleteMessage"
	TypeBatch         = "messages"
)

// Event is a broadcast event flowing through the bus and out to stream
// clients. It is a closed union: consumers switch exhaustively on the
// concrete type instead of probing optional fields.
type Event interface {
	isEvent()
}

// ConnectedEvent is sent once to a client when its stream opens.
type ConnectedEvent struct{}

// NewMessageEvent announces a freshly persisted message.
type NewMessageEvent struct {
	Message Message
}

// DeleteMessageEvent announces a hard delete. The payload carries exactly
// the message ID; there is no alternate field layout.
type DeleteMessageEvent struct {
	MessageID string
}

// BatchEvent carries a replay snapshot for a newly connected client.
type BatchEvent struct {
	Messages []Message
}

func (ConnectedEvent) isEvent()     {}
func (NewMessageEvent) isEvent()    {}
func (DeleteMessageEvent) isEvent() {}
func (BatchEvent) isEvent()         {}

// envelope is the JSON frame shared by the stream endpoint and its clients.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type deletePayload struct {
	MessageID string `json:"messageId"`
}

// EncodeEvent serializes an event to its wire frame.
func EncodeEvent(ev Event) ([]byte, error) {
	var env envelope
	var err error

	switch e := ev.(type) {
	case ConnectedEvent:
		env.Type = TypeConnected
	case NewMessageEvent:
		env.Type = TypeNewMessage
		env.Data, err = json.Marshal(e.Message)
	case DeleteMessageEvent:
		env.Type = TypeDeleteMessage
		env.Data, err = json.Marshal(deletePayload{MessageID: e.MessageID})
	case BatchEvent:
		env.Type = TypeBatch
		env.Data, err = json.Marshal(e.Messages)
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", env.Type, err)
	}

	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", env.Type, err)
	}
	return b, nil
}

// DecodeEvent parses a wire frame back into an event.
func DecodeEvent(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event frame: %w", err)
	}

	switch env.Type {
	case TypeConnected:
		return ConnectedEvent{}, nil
	case TypeNewMessage:
		var m Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		return NewMessageEvent{Message: m}, nil
	case TypeDeleteMessage:
		var p deletePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		return DeleteMessageEvent{MessageID: p.MessageID}, nil
	case TypeBatch:
		var msgs []Message
		if err := json.Unmarshal(env.Data, &msgs); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
		return BatchEvent{Messages: msgs}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
