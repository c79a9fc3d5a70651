package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mwenda27/chat_link/cache"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
)

func TestCreateOrGetConversation_IdempotentFromEitherDirection(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")
	bob := createUser(t, "bob")

	first, created, err := CreateOrGetConversation(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first call should create")
	}

	second, created, err := CreateOrGetConversation(context.Background(), bob.ID, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("second call must reuse the existing row")
	}
	if first.ID != second.ID {
		t.Fatalf("want same conversation from both directions, got %s and %s", first.ID, second.ID)
	}

	var count int64
	database.DB.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Fatalf("want exactly one row per pair, got %d", count)
	}
}

func TestCreateOrGetConversation_ConcurrentCreationsConverge(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")
	bob := createUser(t, "bob")

	ids := make([]uuid.UUID, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int, a, b uuid.UUID) {
			defer wg.Done()
			conv, _, err := CreateOrGetConversation(context.Background(), a, b)
			if err != nil {
				t.Errorf("concurrent create: %v", err)
				return
			}
			ids[i] = conv.ID
		}(i, alice.ID, bob.ID)
		alice, bob = bob, alice
	}
	wg.Wait()

	if ids[0] != ids[1] {
		t.Fatalf("racing creations diverged: %s vs %s", ids[0], ids[1])
	}
	var count int64
	database.DB.Model(&models.Conversation{}).Count(&count)
	if count != 1 {
		t.Fatalf("want one row after race, got %d", count)
	}
}

func TestCreateOrGetConversation_RejectsSelf(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")

	if _, _, err := CreateOrGetConversation(context.Background(), alice.ID, alice.ID); err != ErrSelfConversation {
		t.Fatalf("want ErrSelfConversation, got %v", err)
	}
}

func TestNormalizePair(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	u1, u2 := NormalizePair(b, a)
	if u1 != a || u2 != b {
		t.Fatalf("want (a, b), got (%s, %s)", u1, u2)
	}
	u1, u2 = NormalizePair(a, b)
	if u1 != a || u2 != b {
		t.Fatalf("already ordered pair must pass through, got (%s, %s)", u1, u2)
	}
}

func TestListConversations_OnlyParticipantRowsNewestFirst(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")
	bob := createUser(t, "bob")
	carol := createUser(t, "carol")
	dave := createUser(t, "dave")

	withBob, _, err := CreateOrGetConversation(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	withCarol, _, err := CreateOrGetConversation(context.Background(), alice.ID, carol.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := CreateOrGetConversation(context.Background(), carol.ID, dave.ID); err != nil {
		t.Fatal(err)
	}

	// a message in the older conversation moves it to the top
	if _, err := SendMessage(context.Background(), SendMessageInput{
		ConversationID: withBob.ID,
		SenderID:       bob.ID,
		Content:        strPtr("hey"),
	}); err != nil {
		t.Fatal(err)
	}

	list, err := ListConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("alice has 2 conversations, got %d", len(list))
	}
	for _, conv := range list {
		if !IsParticipant(conv.Conversation, alice.ID) {
			t.Fatalf("conversation %s does not include alice", conv.ID)
		}
	}
	if list[0].ID != withBob.ID || list[1].ID != withCarol.ID {
		t.Fatalf("want updated_at desc order [%s %s], got [%s %s]",
			withBob.ID, withCarol.ID, list[0].ID, list[1].ID)
	}
}

func TestListConversations_Enrichment(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")
	bob := createUser(t, "bob")

	conv, _, err := CreateOrGetConversation(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}

	// empty conversation: optional fields absent, not an error
	list, err := ListConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].LastMessage != nil {
		t.Fatal("no messages yet, last_message must be absent")
	}
	if list[0].UnreadCount != 0 {
		t.Fatalf("want 0 unread, got %d", list[0].UnreadCount)
	}
	if list[0].OtherUser == nil || list[0].OtherUser.ID != bob.ID {
		t.Fatalf("alice's view must resolve bob as the other participant, got %+v", list[0].OtherUser)
	}

	for _, content := range []string{"hello", "are you there?"} {
		if _, err := SendMessage(context.Background(), SendMessageInput{
			ConversationID: conv.ID,
			SenderID:       bob.ID,
			Content:        strPtr(content),
		}); err != nil {
			t.Fatal(err)
		}
	}

	list, err = ListConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].LastMessage == nil || *list[0].LastMessage.Content != "are you there?" {
		t.Fatalf("want newest message surfaced, got %+v", list[0].LastMessage)
	}
	if list[0].UnreadCount != 2 {
		t.Fatalf("alice should see 2 unread, got %d", list[0].UnreadCount)
	}

	// the sender's own messages never count against the sender
	bobList, err := ListConversations(context.Background(), bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if bobList[0].UnreadCount != 0 {
		t.Fatalf("bob sent everything, want 0 unread, got %d", bobList[0].UnreadCount)
	}
	if bobList[0].OtherUser == nil || bobList[0].OtherUser.ID != alice.ID {
		t.Fatal("bob's view must resolve alice as the other participant")
	}
}

func TestListConversations_MissingProfileDegrades(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")
	ghost := uuid.New() // never created

	if _, _, err := CreateOrGetConversation(context.Background(), alice.ID, ghost); err != nil {
		t.Fatal(err)
	}

	list, err := ListConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("want the row despite the missing profile, got %d rows", len(list))
	}
	if list[0].OtherUser != nil {
		t.Fatal("missing profile must degrade to absent, not fail")
	}
}

func TestOtherParticipant(t *testing.T) {
	conv := models.Conversation{User1ID: uuid.New(), User2ID: uuid.New()}
	if got := OtherParticipant(conv, conv.User1ID); got != conv.User2ID {
		t.Fatalf("want user2, got %s", got)
	}
	if got := OtherParticipant(conv, conv.User2ID); got != conv.User1ID {
		t.Fatalf("want user1, got %s", got)
	}
}

func TestListConversations_ServedFromCacheUntilInvalidated(t *testing.T) {
	setupTestDB(t)
	alice := createUser(t, "alice")
	bob := createUser(t, "bob")
	conv, _, err := CreateOrGetConversation(context.Background(), alice.ID, bob.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ListConversations(context.Background(), alice.ID); err != nil {
		t.Fatal(err)
	}

	// a write that bypasses the service leaves the cached list untouched...
	database.DB.Create(&models.Message{
		ConversationID: conv.ID,
		SenderID:       bob.ID,
		Content:        strPtr("psst"),
		MessageType:    models.MessageTypeText,
		CreatedAt:      time.Now(),
	})
	list, err := ListConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].UnreadCount != 0 {
		t.Fatal("cached list should not have observed the out-of-band write yet")
	}

	// ...until the key is invalidated, as the change feed would
	cache.Shared.Invalidate(conversationsKey(alice.ID))
	list, err = ListConversations(context.Background(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].UnreadCount != 1 {
		t.Fatalf("want refetched unread count 1, got %d", list[0].UnreadCount)
	}
}
