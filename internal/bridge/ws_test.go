package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades connections and hands the transport to onConn.
func wsTestServer(t *testing.T, onConn func(*WSServerTransport)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		onConn(NewWSServerTransport(conn))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + srv.URL[4:] // http:// → ws://
}

func TestWSTransportRoundTrip(t *testing.T) {
	srv := wsTestServer(t, func(tr *WSServerTransport) {
		// Echo server: envelopes come back unchanged.
		ctx := context.Background()
		for {
			msg, err := tr.Receive(ctx)
			if err != nil {
				return
			}
			if err := tr.Send(ctx, msg); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialWS(ctx, wsURL(srv))
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}
	defer client.Close()

	sent, _ := Encode(Envelope{Type: CategoryAuth, Data: []byte(`{"action":"login"}`), RequestID: "ws-1"})
	if err := client.Send(ctx, sent); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := client.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	env, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.RequestID != "ws-1" || env.Type != CategoryAuth {
		t.Errorf("round trip = %+v", env)
	}
}

func TestWSTransportOrdering(t *testing.T) {
	received := make(chan []byte, 32)
	srv := wsTestServer(t, func(tr *WSServerTransport) {
		ctx := context.Background()
		for {
			msg, err := tr.Receive(ctx)
			if err != nil {
				close(received)
				return
			}
			received <- msg
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialWS(ctx, wsURL(srv))
	if err != nil {
		t.Fatalf("DialWS: %v", err)
	}

	for i := 0; i < 20; i++ {
		raw, _ := Encode(Envelope{Type: CategoryCart, Data: []byte(`{}`), RequestID: string(rune('a' + i))})
		if err := client.Send(ctx, raw); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	client.Close()

	i := 0
	for msg := range received {
		env, err := Decode(msg)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if env.RequestID != string(rune('a'+i)) {
			t.Fatalf("message %d out of order: %q", i, env.RequestID)
		}
		i++
		if i == 20 {
			break
		}
	}
}
