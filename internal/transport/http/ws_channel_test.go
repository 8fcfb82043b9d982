package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"realm-trivia-bot/internal/domain"
	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *websocket.Conn, func()) {
	t.Helper()
	hub := NewHub(nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u1&name=Alice"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		server.Close()
		t.Fatalf("dial: %v", err)
	}

	// The dial can return before ServeWS registers the client.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			conn.Close()
			server.Close()
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return hub, conn, func() {
		conn.Close()
		server.Close()
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) outboundFrame {
	t.Helper()
	var frame outboundFrame
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestHubBroadcastsMessages(t *testing.T) {
	hub, conn, cleanup := newTestHub(t)
	defer cleanup()

	handle, err := hub.Send(context.Background(), domain.Message{Title: "Question 1/3", Body: "What is 2 + 2?"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != "message" || frame.ID != handle {
		t.Fatalf("expected message frame for %d, got %+v", handle, frame)
	}

	if err := hub.AttachOptions(context.Background(), handle, []string{"1", "2", "3"}); err != nil {
		t.Fatalf("attach options: %v", err)
	}
	if frame := readFrame(t, conn); frame.Type != "options" {
		t.Fatalf("expected options frame, got %+v", frame)
	}

	if err := hub.Edit(context.Background(), handle, domain.Message{Title: "Leaderboard"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if frame := readFrame(t, conn); frame.Type != "edit" {
		t.Fatalf("expected edit frame, got %+v", frame)
	}
}

func TestHubEditUnknownHandle(t *testing.T) {
	hub := NewHub(nil)
	err := hub.Edit(context.Background(), 42, domain.Message{})
	if !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestHubDeleteRetractsMessage(t *testing.T) {
	hub, conn, cleanup := newTestHub(t)
	defer cleanup()

	handle, err := hub.Send(context.Background(), domain.Message{Title: "Question"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	readFrame(t, conn) // message frame

	if err := hub.Delete(context.Background(), handle); err != nil {
		t.Fatalf("delete: %v", err)
	}
	frame := readFrame(t, conn)
	if frame.Type != "delete" || frame.ID != handle {
		t.Fatalf("expected delete frame for %d, got %+v", handle, frame)
	}

	// The handle is gone: editing or deleting it again fails.
	if err := hub.Edit(context.Background(), handle, domain.Message{}); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound after delete, got %v", err)
	}
	if err := hub.Delete(context.Background(), handle); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound on double delete, got %v", err)
	}
}

func TestHubRoutesSubmissionsToListener(t *testing.T) {
	hub, conn, cleanup := newTestHub(t)
	defer cleanup()

	handle, err := hub.Send(context.Background(), domain.Message{Title: "Question"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	readFrame(t, conn) // message frame

	events, stop, err := hub.Listen(context.Background(), handle, time.Minute)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer stop()

	submit := map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"messageId":   handle,
			"optionIndex": 1,
		},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	select {
	case ev := <-events:
		if ev.ParticipantID != "u1" || ev.DisplayName != "Alice" || ev.OptionIndex != 1 || ev.Kind != domain.EventSubmit {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no event received")
	}

	withdraw := map[string]any{
		"type": "withdraw",
		"payload": map[string]any{
			"messageId":   handle,
			"optionIndex": 1,
		},
	}
	if err := conn.WriteJSON(withdraw); err != nil {
		t.Fatalf("write withdraw: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Kind != domain.EventWithdraw {
			t.Fatalf("expected withdraw event, got %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no withdraw event received")
	}
}

func TestHubSingleListenerAndStop(t *testing.T) {
	hub := NewHub(nil)
	handle, _ := hub.Send(context.Background(), domain.Message{Title: "Question"})

	events, stop, err := hub.Listen(context.Background(), handle, time.Minute)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	if _, _, err := hub.Listen(context.Background(), handle, time.Minute); !errors.Is(err, domain.ErrListenerActive) {
		t.Fatalf("expected ErrListenerActive, got %v", err)
	}

	stop()
	if _, open := <-events; open {
		t.Fatalf("expected events closed after stop")
	}

	// A new subscription can open once the previous one is released.
	_, stop2, err := hub.Listen(context.Background(), handle, time.Minute)
	if err != nil {
		t.Fatalf("relisten: %v", err)
	}
	stop2()
}

func TestHubListenerExpiresOnDeadline(t *testing.T) {
	hub := NewHub(nil)
	handle, _ := hub.Send(context.Background(), domain.Message{Title: "Question"})

	events, stop, err := hub.Listen(context.Background(), handle, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer stop()

	select {
	case _, open := <-events:
		if open {
			t.Fatalf("expected closed stream, got event")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not close on deadline")
	}
}

func TestStartHandlerRoleGateAndSingleRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	handler := NewStartHandler(func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}, "s3cret", nil)

	server := httptest.NewServer(handler)
	defer server.Close()
	defer close(release)

	// Missing role token is rejected.
	resp, err := http.Post(server.URL, "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	start := func() *http.Response {
		req, _ := http.NewRequest(http.MethodPost, server.URL, nil)
		req.Header.Set(roleTokenHeader, "s3cret")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		return resp
	}

	if resp := start(); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	<-started

	// Second trigger while the session is running conflicts.
	if resp := start(); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", resp.StatusCode)
	}
}
