// README: Hub relay test: broker events reach a connected websocket client.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"safar/internal/pubsub"
)

func TestHubRelaysTopicEvents(t *testing.T) {
	broker := pubsub.NewMemoryBroker()
	hub := NewHub(broker, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, pubsub.BookingTopic("b1"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The hub subscribes during the upgrade handshake; keep publishing until
	// the relay picks it up. A missed early publish is fine, the broker is
	// best-effort anyway.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(20 * time.Millisecond):
				_ = broker.Publish(context.Background(), pubsub.BookingTopic("b1"), pubsub.Event{
					Kind:      pubsub.KindStatusChanged,
					BookingID: "b1",
				})
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got pubsub.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if got.Kind != pubsub.KindStatusChanged || got.BookingID != "b1" {
		t.Fatalf("event = %+v, want status_changed for b1", got)
	}
}
