package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/mwenda27/chat_link/cache"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
)

func startConversation(t *testing.T) (models.User, models.User, *models.Conversation) {
	t.Helper()
	alice := createUser(t, "alice")
	bob := createUser(t, "bob")
	conv, _, err := CreateOrGetConversation(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	return alice, bob, conv
}

func TestSendMessage_RejectsEmptyBeforeAnyWrite(t *testing.T) {
	setupTestDB(t)
	alice, _, conv := startConversation(t)

	cases := []*string{nil, strPtr(""), strPtr("   \n\t")}
	for _, content := range cases {
		_, err := SendMessage(context.Background(), SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			Content:        content,
		})
		if err != ErrEmptyMessage {
			t.Fatalf("content %v: want ErrEmptyMessage, got %v", content, err)
		}
	}

	messages, err := ListMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 0 {
		t.Fatalf("rejected sends must not persist, found %d rows", len(messages))
	}
}

func TestSendMessage_AttachmentOnlyIsValid(t *testing.T) {
	setupTestDB(t)
	alice, _, conv := startConversation(t)

	msg, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		MessageType:    models.MessageTypeImage,
		FileURL:        strPtr("https://cdn.example.com/chat_link_uploads/a/1.png"),
		FileName:       strPtr("holiday.png"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Content != nil {
		t.Fatal("attachment-only message must have empty content")
	}
	if msg.MessageType != models.MessageTypeImage {
		t.Fatalf("want image, got %s", msg.MessageType)
	}
	if msg.FileURL == nil || *msg.FileURL == "" {
		t.Fatal("attachment URL must survive the send")
	}
}

func TestSendMessage_DefaultsKindFromPayload(t *testing.T) {
	setupTestDB(t)
	alice, _, conv := startConversation(t)

	text, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		Content:        strPtr("plain"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if text.MessageType != models.MessageTypeText {
		t.Fatalf("want text, got %s", text.MessageType)
	}

	file, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		FileURL:        strPtr("https://cdn.example.com/doc.pdf"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if file.MessageType != models.MessageTypeFile {
		t.Fatalf("want file, got %s", file.MessageType)
	}
}

func TestSendMessage_RejectsNonParticipant(t *testing.T) {
	setupTestDB(t)
	_, _, conv := startConversation(t)
	mallory := createUser(t, "mallory")

	_, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       mallory.ID,
		Content:        strPtr("let me in"),
	})
	if err != ErrNotParticipant {
		t.Fatalf("want ErrNotParticipant, got %v", err)
	}
}

func TestSendMessage_AdvancesConversationUpdatedAt(t *testing.T) {
	setupTestDB(t)
	alice, _, conv := startConversation(t)
	before := conv.UpdatedAt

	if _, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		Content:        strPtr("bump"),
	}); err != nil {
		t.Fatal(err)
	}

	var reloaded models.Conversation
	if err := database.DB.First(&reloaded, "id = ?", conv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !reloaded.UpdatedAt.After(before) {
		t.Fatalf("updated_at must advance on send: %v -> %v", before, reloaded.UpdatedAt)
	}
}

func TestListMessages_ChronologicalOrder(t *testing.T) {
	setupTestDB(t)
	alice, bob, conv := startConversation(t)

	contents := []string{"first", "second", "third"}
	senders := []uuid.UUID{alice.ID, bob.ID, alice.ID}
	for i, content := range contents {
		if _, err := SendMessage(context.Background(), SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       senders[i],
			Content:        strPtr(content),
		}); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := ListMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 3 {
		t.Fatalf("want 3 messages, got %d", len(messages))
	}
	for i, content := range contents {
		if messages[i].Content == nil || *messages[i].Content != content {
			t.Fatalf("position %d: want %q, got %+v", i, content, messages[i].Content)
		}
	}
}

func TestSendMessage_EchoNeverDuplicatesInCachedFeed(t *testing.T) {
	setupTestDB(t)
	alice, _, conv := startConversation(t)

	// warm the feed cache first, as a mounted chat window would
	if _, err := ListMessages(context.Background(), conv.ID); err != nil {
		t.Fatal(err)
	}

	msg, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		Content:        strPtr("hello"),
	})
	if err != nil {
		t.Fatal(err)
	}

	// the realtime echo re-announces the same row
	appendCachedMessage(conv.ID, *msg)
	appendCachedMessage(conv.ID, *msg)

	// the cached value itself must hold one copy
	if cached, ok := cache.Shared.Peek("messages:" + conv.ID.String()); ok {
		inCache := 0
		for _, m := range cached.([]models.Message) {
			if m.ID == msg.ID {
				inCache++
			}
		}
		if inCache != 1 {
			t.Fatalf("cached feed holds %d copies of the message", inCache)
		}
	}

	messages, err := ListMessages(context.Background(), conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	seen := 0
	for _, m := range messages {
		if m.ID == msg.ID {
			seen++
		}
	}
	if seen != 1 {
		t.Fatalf("message must appear exactly once after the echo, got %d", seen)
	}
}

func TestMarkConversationRead(t *testing.T) {
	setupTestDB(t)
	alice, bob, conv := startConversation(t)

	for _, content := range []string{"one", "two"} {
		if _, err := SendMessage(context.Background(), SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       bob.ID,
			Content:        strPtr(content),
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		Content:        strPtr("mine"),
	}); err != nil {
		t.Fatal(err)
	}

	marked, err := MarkConversationRead(context.Background(), conv.ID, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if marked != 2 {
		t.Fatalf("alice had 2 incoming unread, marked %d", marked)
	}

	// own message must stay unread for bob, not for alice
	list, err := ListConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].UnreadCount != 0 {
		t.Fatalf("after reading, alice's unread must be 0, got %d", list[0].UnreadCount)
	}

	bobList, err := ListConversations(context.Background(), bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bobList[0].UnreadCount != 1 {
		t.Fatalf("alice's message is still unread for bob, got %d", bobList[0].UnreadCount)
	}

	// idempotent: nothing left to mark
	marked, err = MarkConversationRead(context.Background(), conv.ID, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if marked != 0 {
		t.Fatalf("second mark must be a no-op, marked %d", marked)
	}
}

func TestConversationScenario_HelloFromAToB(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")
	bob := createUser(t, "bob")

	conv, _, err := CreateOrGetConversation(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       alice.ID,
		Content:        strPtr("hello"),
	}); err != nil {
		t.Fatal(err)
	}

	bobList, err := ListConversations(context.Background(), bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bobList[0].LastMessage == nil || *bobList[0].LastMessage.Content != "hello" {
		t.Fatalf("bob must see the greeting as last message, got %+v", bobList[0].LastMessage)
	}
	if bobList[0].UnreadCount != 1 {
		t.Fatalf("bob must see 1 unread, got %d", bobList[0].UnreadCount)
	}

	// bob opens the conversation
	if _, err := MarkConversationRead(context.Background(), conv.ID, bob.ID); err != nil {
		t.Fatal(err)
	}

	bobList, err = ListConversations(context.Background(), bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bobList[0].UnreadCount != 0 {
		t.Fatalf("opened conversation must show 0 unread, got %d", bobList[0].UnreadCount)
	}
}
