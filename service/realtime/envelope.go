package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire unit published to a topic and forwarded verbatim
// to every subscribed socket.
type Envelope struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEnvelope stamps the event with the UTC publication time and
// canonicalizes identifier values: the backplane only carries text-safe
// payloads, so every uuid becomes its string form.
func NewEnvelope(eventType string, data map[string]any) Envelope {
	clean := make(map[string]any, len(data))
	for k, v := range data {
		switch id := v.(type) {
		case uuid.UUID:
			clean[k] = id.String()
		case *uuid.UUID:
			if id != nil {
				clean[k] = id.String()
			} else {
				clean[k] = nil
			}
		default:
			clean[k] = v
		}
	}
	return Envelope{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      clean,
	}
}
