package websocket

import (
	"net"
	"sync"
	"testing"
	"time"

	wsclient "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// dialTestClient upgrades a real connection, registers it in the client
// table, and returns the browser side plus the hub-side client.
func dialTestClient(t *testing.T) (*wsclient.Conn, *Client) {
	t.Helper()

	registered := make(chan *Client, 1)
	hold := make(chan struct{})
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		client := &Client{UserID: uuid.New(), Conn: conn}
		clientsMu.Lock()
		clients[client.UserID] = client
		clientsMu.Unlock()
		registered <- client
		<-hold
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = app.Listener(ln) }()

	conn, _, err := wsclient.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	client := <-registered
	t.Cleanup(func() {
		clientsMu.Lock()
		delete(clients, client.UserID)
		clientsMu.Unlock()
		close(hold)
		conn.Close()
		_ = app.Shutdown()
	})
	return conn, client
}

// Change notifications run on whichever goroutine published the mutation
// while the hub goroutine delivers messages to the same connection. All of
// it must funnel through one writer per socket.
func TestNotifyChange_ConcurrentWritersAreSerialized(t *testing.T) {
	conn, client := dialTestClient(t)

	const notifiers = 64
	var wg sync.WaitGroup
	wg.Add(notifiers + 1)
	for i := 0; i < notifiers; i++ {
		go func() {
			defer wg.Done()
			NotifyChange("messages")
			NotifyInvalidated("conversations:user")
		}()
	}
	go func() {
		defer wg.Done()
		for i := 0; i < notifiers; i++ {
			if err := client.WriteJSON(messageEvent{Type: "new_message"}); err != nil {
				t.Errorf("hub-side write: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	// every frame must arrive intact
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for received := 0; received < notifiers*3; received++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read frame %d: %v", received, err)
		}
	}
}

func TestNotifyInvalidated_ReachesConnectedClient(t *testing.T) {
	conn, _ := dialTestClient(t)

	NotifyInvalidated("messages:some-conversation")

	var event struct {
		Type string `json:"type"`
		Key  string `json:"key"`
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatal(err)
	}
	if event.Type != "query_invalidated" || event.Key != "messages:some-conversation" {
		t.Fatalf("unexpected event %+v", event)
	}
}
