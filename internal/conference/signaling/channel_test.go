package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

// serverAndClient spins up an httptest server that upgrades every request to
// a WebSocket and wraps it in a WSChannel, returning that server-side channel
// alongside a plain client-side *websocket.Conn for driving it from tests.
func serverAndClient(t *testing.T) (*WSChannel, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverCh := make(chan *WSChannel, 1)
	log := zaptest.NewLogger(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverCh <- NewWSChannel(conn, log)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case ch := <-serverCh:
		return ch, client
	case <-time.After(time.Second):
		t.Fatal("server never accepted the connection")
		return nil, nil
	}
}

func TestWSChannelRecvDecodesType(t *testing.T) {
	t.Parallel()
	ch, client := serverAndClient(t)

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","from":"a","text":"hi"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg, err := ch.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if msg.Type != "chat" {
		t.Fatalf("Type = %q, want chat", msg.Type)
	}
}

func TestWSChannelRecvIgnoresUntypedFrames(t *testing.T) {
	t.Parallel()
	ch, client := serverAndClient(t)

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"no_type_field":true}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ice","candidate":{"candidate":"c"}}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg, err := ch.Recv()
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if msg.Type != "ice" {
		t.Fatalf("expected the untyped frame to be skipped, got %q", msg.Type)
	}
}

func TestWSChannelSendDeliversFrame(t *testing.T) {
	t.Parallel()
	ch, client := serverAndClient(t)

	ch.Send(struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}{Type: "answer", SDP: "v=0"})

	_ = client.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if !strings.Contains(string(data), `"type":"answer"`) {
		t.Fatalf("unexpected frame: %s", data)
	}
}

func TestWSChannelCloseSignalsDone(t *testing.T) {
	t.Parallel()
	ch, _ := serverAndClient(t)

	if err := ch.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Close() is idempotent.
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() never fired after Close()")
	}
}

func TestWSChannelDoneFiresOnRemoteDisconnect(t *testing.T) {
	t.Parallel()
	ch, client := serverAndClient(t)

	_ = client.Close()

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() never fired after remote disconnect")
	}

	if _, err := ch.Recv(); err != ErrClosed {
		t.Fatalf("Recv() after disconnect error = %v, want ErrClosed", err)
	}
}
