package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/mwenda27/chat_link/database"
	"github.com/mwenda27/chat_link/models"
	"github.com/mwenda27/chat_link/realtime"
)

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn

	writeMu sync.Mutex
}

// WriteJSON serializes writes to the underlying connection. The hub
// goroutine, change-feed notifications, and the read loop's error replies
// all write to the same socket, and the websocket library allows only one
// concurrent writer per connection.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// SendPayload is what clients write on the socket to send a message.
type SendPayload struct {
	ConversationID string  `json:"conversation_id"`
	Content        *string `json:"content"`
	MessageType    string  `json:"message_type"`
	FileURL        *string `json:"file_url"`
	FileName       *string `json:"file_name"`
}

type changeEvent struct {
	Type  string `json:"type"`
	Table string `json:"table"`
}

type invalidationEvent struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type messageEvent struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

var clients = make(map[uuid.UUID]*Client)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var broadcast = make(chan *models.Message, 256)

// PushMessage hands a freshly persisted message to the hub for delivery to
// the other participant. Non-blocking: a full hub drops the push, the
// change-event invalidation still brings every client back in sync.
func PushMessage(msg *models.Message) {
	select {
	case broadcast <- msg:
	default:
		log.Printf("Hub broadcast queue full, dropping push for message %s", msg.ID)
	}
}

// NotifyChange tells every connected client that a table changed so it can
// refetch its queries. Wired to the change feed at boot.
func NotifyChange(table string) {
	notifyAll(changeEvent{Type: "table_changed", Table: table})
}

// NotifyInvalidated tells every connected client that a specific cached
// query went stale. Wired to the query cache's invalidation listeners at
// boot, so clients can refetch just the affected key.
func NotifyInvalidated(key string) {
	notifyAll(invalidationEvent{Type: "query_invalidated", Key: key})
}

func notifyAll(event interface{}) {
	clientsMu.RLock()
	defer clientsMu.RUnlock()
	for userID, client := range clients {
		if err := client.WriteJSON(event); err != nil {
			log.Printf("Error notifying client %s: %v", userID, err)
		}
	}
}

func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Client registered: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client
			clientsMu.Unlock()
			setPresence(client.UserID, true)
		case client := <-Unregister:
			log.Printf("Client unregistered: %s", client.UserID)
			clientsMu.Lock()
			if cur, ok := clients[client.UserID]; ok && cur == client {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
			setPresence(client.UserID, false)
		case message := <-broadcast:
			deliver(message)
		}
	}
}

func deliver(message *models.Message) {
	var conv models.Conversation
	if err := database.DB.First(&conv, "id = ?", message.ConversationID).Error; err != nil {
		log.Printf("Error fetching conversation %s for delivery: %v", message.ConversationID, err)
		return
	}

	recipientID := conv.User1ID
	if recipientID == message.SenderID {
		recipientID = conv.User2ID
	}

	clientsMu.RLock()
	client, ok := clients[recipientID]
	clientsMu.RUnlock()
	if !ok {
		return
	}
	if err := client.WriteJSON(messageEvent{Type: "new_message", Message: message}); err != nil {
		log.Printf("Error sending message to client %s: %v", recipientID, err)
		client.Conn.Close()
		clientsMu.Lock()
		if cur, ok := clients[recipientID]; ok && cur == client {
			delete(clients, recipientID)
		}
		clientsMu.Unlock()
	}
}

// setPresence keeps the profile's online flag in line with socket lifetime
// and lets every conversation list showing this user refresh.
func setPresence(userID uuid.UUID, online bool) {
	now := time.Now()
	err := database.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"is_online": online, "last_seen": now}).Error
	if err != nil {
		log.Printf("Error updating presence for %s: %v", userID, err)
		return
	}
	realtime.Publish(context.Background(), realtime.TableProfiles)
}
