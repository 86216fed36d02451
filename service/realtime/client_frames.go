package realtime

import (
	"encoding/json"

	"github.com/pkg/errors"

	"CampusHub/tools/decode"
)

// Client -> server frame kinds. The accepted vocabulary is closed: every
// kind gets a command type below, anything else is a forward-compatible
// no-op.
const (
	clientFrameTyping = "typing"
)

type clientCommand interface {
	isClientCommand()
}

// typingCommand is the one documented client-originated frame:
// {"type":"typing","channel_id":"<uuid>","is_typing":<bool>}.
type typingCommand struct {
	ChannelID string `json:"channel_id"`
	IsTyping  bool   `json:"is_typing"`
}

func (typingCommand) isClientCommand() {}

// parseClientFrame decodes a raw client frame into its command. Unknown
// `type` values return (nil, nil) and are ignored by the caller; frames
// that cannot be parsed at all return an error, which the read loop
// treats like any other read error.
func parseClientFrame(raw []byte) (clientCommand, error) {
	var frame map[string]any
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, errors.Wrap(err, "unparseable client frame")
	}

	kind, _ := frame["type"].(string)
	switch kind {
	case clientFrameTyping:
		cmd, err := decode.DecodeMap[typingCommand](frame)
		if err != nil {
			return nil, errors.Wrap(err, "decode typing frame")
		}
		return *cmd, nil
	default:
		return nil, nil
	}
}
