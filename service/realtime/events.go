package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"CampusHub/service/backplane"
)

// Server -> client event types. One constant per domain event kind; the
// set below is the complete outbound vocabulary.
const (
	EventChannelMessage    = "channel_message"
	EventMessageUpdated    = "message_updated"
	EventMessageDeleted    = "message_deleted"
	EventMessageReply      = "message_reply"
	EventMemberJoined      = "member_joined"
	EventMemberLeft        = "member_left"
	EventMemberRoleUpdated = "member_role_updated"
	EventUserBanned        = "user_banned"
	EventUserUnbanned      = "user_unbanned"
	EventUserKicked        = "user_kicked"
	EventChannelCreated    = "channel_created"
	EventChannelUpdated    = "channel_updated"
	EventChannelDeleted    = "channel_deleted"
	EventUserTyping        = "user_typing"
	EventMessage           = "message"
	EventNotification      = "notification"
)

// Service is the write-side API for real-time notifications: the only
// sanctioned way for any other domain to publish onto the backplane.
// Publish success means "accepted by the broker"; topics with zero
// subscribers drop the message.
type Service struct {
	bp backplane.Backplane
}

func NewService(bp backplane.Backplane) *Service {
	return &Service{bp: bp}
}

func (s *Service) publish(ctx context.Context, topic, eventType string, data map[string]any) error {
	env := NewEnvelope(eventType, data)
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, "marshal envelope type=%s", eventType)
	}
	return s.bp.Publish(ctx, topic, payload)
}

func (s *Service) SendChannelMessage(ctx context.Context, channelID, messageID, userID uuid.UUID, content, username string) error {
	return s.publish(ctx, ChannelTopic(channelID), EventChannelMessage, map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
		"user_id":    userID,
		"username":   username,
		"content":    content,
	})
}

func (s *Service) SendMessageUpdate(ctx context.Context, channelID, messageID uuid.UUID, content string) error {
	return s.publish(ctx, ChannelTopic(channelID), EventMessageUpdated, map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
		"content":    content,
	})
}

func (s *Service) SendMessageDelete(ctx context.Context, channelID, messageID uuid.UUID) error {
	return s.publish(ctx, ChannelTopic(channelID), EventMessageDeleted, map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
	})
}

func (s *Service) SendMessageReply(ctx context.Context, channelID, messageID, parentMessageID, userID uuid.UUID, content, username string) error {
	return s.publish(ctx, ChannelTopic(channelID), EventMessageReply, map[string]any{
		"channel_id":        channelID,
		"message_id":        messageID,
		"parent_message_id": parentMessageID,
		"user_id":           userID,
		"username":          username,
		"content":           content,
	})
}

func (s *Service) SendMemberJoined(ctx context.Context, channelID, userID uuid.UUID, username string) error {
	return s.publish(ctx, ChannelTopic(channelID), EventMemberJoined, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"username":   username,
	})
}

func (s *Service) SendMemberLeft(ctx context.Context, channelID, userID uuid.UUID, username string) error {
	return s.publish(ctx, ChannelTopic(channelID), EventMemberLeft, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"username":   username,
	})
}

func (s *Service) SendMemberRoleUpdated(ctx context.Context, channelID, userID uuid.UUID, newRole, username string) error {
	return s.publish(ctx, ChannelTopic(channelID), EventMemberRoleUpdated, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"username":   username,
		"new_role":   newRole,
	})
}

// SendUserBanned notifies the banned user directly on their user topic,
// then the channel. Two independent envelopes, one per topic, so each
// audience gets exactly the payload shape relevant to it.
func (s *Service) SendUserBanned(ctx context.Context, channelID, userID uuid.UUID, motive string) error {
	if err := s.publish(ctx, UserTopic(userID), EventUserBanned, map[string]any{
		"channel_id": channelID,
		"motive":     motive,
	}); err != nil {
		return err
	}
	return s.publish(ctx, ChannelTopic(channelID), EventUserBanned, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"motive":     motive,
	})
}

func (s *Service) SendUserUnbanned(ctx context.Context, channelID, userID uuid.UUID, motive string) error {
	if err := s.publish(ctx, UserTopic(userID), EventUserUnbanned, map[string]any{
		"channel_id": channelID,
		"motive":     motive,
	}); err != nil {
		return err
	}
	return s.publish(ctx, ChannelTopic(channelID), EventUserUnbanned, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"motive":     motive,
	})
}

func (s *Service) SendUserKicked(ctx context.Context, channelID, userID uuid.UUID) error {
	if err := s.publish(ctx, UserTopic(userID), EventUserKicked, map[string]any{
		"channel_id": channelID,
	}); err != nil {
		return err
	}
	return s.publish(ctx, ChannelTopic(channelID), EventUserKicked, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
	})
}

func (s *Service) SendChannelCreated(ctx context.Context, channelID uuid.UUID, channelName string) error {
	return s.publish(ctx, TopicGlobal, EventChannelCreated, map[string]any{
		"channel_id":   channelID,
		"channel_name": channelName,
	})
}

func (s *Service) SendChannelUpdated(ctx context.Context, channelID uuid.UUID, updatedFields map[string]any) error {
	data := map[string]any{"channel_id": channelID}
	for k, v := range updatedFields {
		data[k] = v
	}
	return s.publish(ctx, ChannelTopic(channelID), EventChannelUpdated, data)
}

func (s *Service) SendChannelDeleted(ctx context.Context, channelID uuid.UUID) error {
	return s.publish(ctx, ChannelTopic(channelID), EventChannelDeleted, map[string]any{
		"channel_id": channelID,
	})
}

func (s *Service) SendTypingIndicator(ctx context.Context, channelID, userID uuid.UUID, username string, isTyping bool) error {
	return s.publish(ctx, ChannelTopic(channelID), EventUserTyping, map[string]any{
		"channel_id": channelID,
		"user_id":    userID,
		"username":   username,
		"is_typing":  isTyping,
	})
}

// SendMessageNotification notifies the recipient of a private
// conversation message on their user topic.
func (s *Service) SendMessageNotification(ctx context.Context, conversationID, recipientID, senderID uuid.UUID, content string) error {
	return s.publish(ctx, UserTopic(recipientID), EventMessage, map[string]any{
		"conversation_id": conversationID,
		"sender_id":       senderID,
		"content":         content,
	})
}

func (s *Service) SendGeneralNotification(ctx context.Context, userID uuid.UUID, title, message string) error {
	return s.publish(ctx, UserTopic(userID), EventNotification, map[string]any{
		"title":   title,
		"message": message,
	})
}
