package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope is the tagged form of an inbound frame: {"type": ..., "payload": ...}.
// The backend also pushes bare message objects without the wrapper, so Type
// may be empty after decoding.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	// TypeChatMessage marks envelope payloads that carry chat content.
	// Every other envelope type is ignored by the realtime layer.
	TypeChatMessage = "CHAT_MESSAGE"
)

// SendBody is the outbound publish body for a chat send.
type SendBody struct {
	Content string `json:"content"`
}

// ChatMessage is the normalized display record produced once at the
// transport boundary. Downstream code never sees raw frames.
type ChatMessage struct {
	ID        string `json:"id"`
	SenderID  string `json:"senderId"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// wireMessage tolerates the field drift across backend versions:
// senderId vs userId, ids and timestamps arriving as strings or numbers.
type wireMessage struct {
	ID        flexString `json:"id"`
	SenderID  flexString `json:"senderId"`
	UserID    flexString `json:"userId"`
	Username  string     `json:"username"`
	Content   string     `json:"content"`
	Timestamp flexString `json:"timestamp"`
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// ErrNotChat reports an inbound envelope whose type is not a chat message.
var ErrNotChat = errors.New("not a chat message")

// DecodeFrame parses one inbound frame body into a ChatMessage.
// Enveloped frames are unwrapped and filtered on type; bare objects are
// forwarded as-is for older backends that push the message directly.
func DecodeFrame(body []byte) (ChatMessage, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ChatMessage{}, fmt.Errorf("decode frame: %w", err)
	}

	payload := body
	if env.Type != "" {
		if env.Type != TypeChatMessage {
			return ChatMessage{}, ErrNotChat
		}
		payload = env.Payload
	}

	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return ChatMessage{}, fmt.Errorf("decode payload: %w", err)
	}

	msg := ChatMessage{
		ID:        string(w.ID),
		SenderID:  string(w.SenderID),
		Username:  w.Username,
		Content:   w.Content,
		Timestamp: string(w.Timestamp),
	}
	if msg.SenderID == "" {
		msg.SenderID = string(w.UserID)
	}
	if msg.ID == "" {
		msg.ID = SynthesizeID(msg.SenderID, msg.Timestamp, msg.Content)
	}
	return msg, nil
}

// SynthesizeID builds a stable identifier for messages the backend delivers
// without one, so deduplication still works across retransmits.
func SynthesizeID(senderID, timestamp, content string) string {
	return strings.Join([]string{senderID, timestamp, content}, "-")
}
