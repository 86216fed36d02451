package realtime

import (
	"github.com/google/uuid"
)

// TopicGlobal receives events addressed to every connected user.
const TopicGlobal = "global"

// UserTopic is the topic carrying events addressed to exactly one user,
// across all their connections and processes.
func UserTopic(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// ChannelTopic is the topic carrying events broadcast to every member of
// a chat channel.
func ChannelTopic(channelID uuid.UUID) string {
	return "channel:" + channelID.String()
}
