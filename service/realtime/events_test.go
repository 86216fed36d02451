package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"CampusHub/service/backplane"
)

type capturedPublish struct {
	topic string
	env   Envelope
}

type captureBackplane struct {
	published []capturedPublish
}

func (b *captureBackplane) Publish(_ context.Context, topic string, payload []byte) error {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	b.published = append(b.published, capturedPublish{topic: topic, env: env})
	return nil
}

func (b *captureBackplane) Subscribe(context.Context, ...string) (backplane.Subscription, error) {
	return nil, errors.New("capture backplane does not subscribe")
}

func TestChannelEventTopicDerivation(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)
	ctx := context.Background()

	channelID, messageID, userID := uuid.New(), uuid.New(), uuid.New()
	if err := svc.SendChannelMessage(ctx, channelID, messageID, userID, "hi", "alice"); err != nil {
		t.Fatalf("SendChannelMessage: %v", err)
	}

	if len(bp.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bp.published))
	}
	got := bp.published[0]
	if got.topic != "channel:"+channelID.String() {
		t.Fatalf("topic = %q, want channel:%s", got.topic, channelID)
	}
	if got.env.Type != EventChannelMessage {
		t.Fatalf("type = %q, want %q", got.env.Type, EventChannelMessage)
	}
	// Every identifier must arrive as its canonical string form.
	if got.env.Data["channel_id"] != channelID.String() {
		t.Fatalf("channel_id = %v, want %q", got.env.Data["channel_id"], channelID.String())
	}
	if got.env.Data["message_id"] != messageID.String() {
		t.Fatalf("message_id = %v, want %q", got.env.Data["message_id"], messageID.String())
	}
	if got.env.Data["user_id"] != userID.String() {
		t.Fatalf("user_id = %v, want %q", got.env.Data["user_id"], userID.String())
	}
}

func TestUserEventTopicDerivation(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)
	userID := uuid.New()

	if err := svc.SendGeneralNotification(context.Background(), userID, "Test", "Hello World"); err != nil {
		t.Fatalf("SendGeneralNotification: %v", err)
	}

	got := bp.published[0]
	if got.topic != "user:"+userID.String() {
		t.Fatalf("topic = %q, want user:%s", got.topic, userID)
	}
	if got.env.Type != EventNotification {
		t.Fatalf("type = %q", got.env.Type)
	}
	if got.env.Data["title"] != "Test" || got.env.Data["message"] != "Hello World" {
		t.Fatalf("payload = %v", got.env.Data)
	}
}

func TestBanPublishesTwoIndependentEnvelopes(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)
	channelID, userID := uuid.New(), uuid.New()

	if err := svc.SendUserBanned(context.Background(), channelID, userID, "spam"); err != nil {
		t.Fatalf("SendUserBanned: %v", err)
	}

	if len(bp.published) != 2 {
		t.Fatalf("published %d events, want 2", len(bp.published))
	}

	toUser, toChannel := bp.published[0], bp.published[1]
	if toUser.topic != "user:"+userID.String() {
		t.Fatalf("first publish topic = %q, want the user topic", toUser.topic)
	}
	if toChannel.topic != "channel:"+channelID.String() {
		t.Fatalf("second publish topic = %q, want the channel topic", toChannel.topic)
	}
	// Both envelopes carry the motive, each shaped for its audience:
	// the user-topic payload does not name the user.
	if toUser.env.Data["motive"] != "spam" || toChannel.env.Data["motive"] != "spam" {
		t.Fatal("motive missing from a ban envelope")
	}
	if _, ok := toUser.env.Data["user_id"]; ok {
		t.Fatal("user-topic ban payload should not carry user_id")
	}
	if toChannel.env.Data["user_id"] != userID.String() {
		t.Fatalf("channel-topic ban payload user_id = %v", toChannel.env.Data["user_id"])
	}
}

func TestKickPublishesToBothTopics(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)
	channelID, userID := uuid.New(), uuid.New()

	if err := svc.SendUserKicked(context.Background(), channelID, userID); err != nil {
		t.Fatalf("SendUserKicked: %v", err)
	}
	if len(bp.published) != 2 {
		t.Fatalf("published %d events, want 2", len(bp.published))
	}
	if bp.published[0].env.Type != EventUserKicked || bp.published[1].env.Type != EventUserKicked {
		t.Fatal("wrong event type on kick")
	}
}

func TestChannelCreatedGoesGlobal(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)

	if err := svc.SendChannelCreated(context.Background(), uuid.New(), "general"); err != nil {
		t.Fatalf("SendChannelCreated: %v", err)
	}
	if bp.published[0].topic != TopicGlobal {
		t.Fatalf("topic = %q, want %q", bp.published[0].topic, TopicGlobal)
	}
	if bp.published[0].env.Data["channel_name"] != "general" {
		t.Fatalf("payload = %v", bp.published[0].env.Data)
	}
}

func TestChannelUpdatedMergesFields(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)
	channelID := uuid.New()

	err := svc.SendChannelUpdated(context.Background(), channelID, map[string]any{
		"name":        "renamed",
		"description": "new purpose",
	})
	if err != nil {
		t.Fatalf("SendChannelUpdated: %v", err)
	}

	data := bp.published[0].env.Data
	if data["channel_id"] != channelID.String() {
		t.Fatalf("channel_id = %v", data["channel_id"])
	}
	if data["name"] != "renamed" || data["description"] != "new purpose" {
		t.Fatalf("updated fields not merged: %v", data)
	}
}

func TestMessageNotificationTargetsRecipient(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)
	conversationID, recipientID, senderID := uuid.New(), uuid.New(), uuid.New()

	err := svc.SendMessageNotification(context.Background(), conversationID, recipientID, senderID, "psst")
	if err != nil {
		t.Fatalf("SendMessageNotification: %v", err)
	}

	got := bp.published[0]
	if got.topic != "user:"+recipientID.String() {
		t.Fatalf("topic = %q, want the recipient's user topic", got.topic)
	}
	if got.env.Data["sender_id"] != senderID.String() {
		t.Fatalf("sender_id = %v", got.env.Data["sender_id"])
	}
	if _, ok := got.env.Data["recipient_id"]; ok {
		t.Fatal("recipient_id should not appear in the payload")
	}
}

func TestEnvelopeTimestampIsUTC(t *testing.T) {
	bp := &captureBackplane{}
	svc := NewService(bp)

	if err := svc.SendGeneralNotification(context.Background(), uuid.New(), "t", "m"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, bp.published[0].env.Timestamp)
	if err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", bp.published[0].env.Timestamp, err)
	}
	if ts.Location() != time.UTC {
		t.Fatalf("timestamp zone = %v, want UTC", ts.Location())
	}
}
