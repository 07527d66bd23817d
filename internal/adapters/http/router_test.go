package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Jukebox/internal/app"
	"github.com/dkeye/Jukebox/internal/app/orch"
	"github.com/dkeye/Jukebox/internal/config"
	"github.com/dkeye/Jukebox/internal/storage"
	"github.com/dkeye/Jukebox/internal/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &config.Config{
		Mode:   "test",
		Secret: "cookie-secret",
		Auth:   config.AuthConfig{JWTSecret: testSecret},
	}
	o := orch.New(app.NewRegistry(), app.NewRoomManager(), storage.New(memory.New()), app.TolerantPolicy{})
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	data, err := json.Marshal(map[string]any{"type": typ, "payload": payload})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
}

// await reads frames until one of the given type arrives and returns its
// payload.
func await(t *testing.T, conn *websocket.Conn, typ string) gjson.Result {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if gjson.GetBytes(data, "type").String() == typ {
			return gjson.GetBytes(data, "payload")
		}
	}
}

func TestWebsocketJam(t *testing.T) {
	srv := newServer(t)
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userClaims("u1", time.Now().Add(time.Hour)))

	dj := dial(t, srv, http.Header{"Authorization": {"Bearer " + token}})
	send(t, dj, "join_room", map[string]any{"roomId": "jam", "userProfile": map[string]any{"displayName": "DJ"}})
	state := await(t, dj, "receive_room_state")
	if !state.Get("isCreator").Bool() || state.Get("creatorId").String() != "u1" {
		t.Fatalf("dj state: %s", state.Raw)
	}

	guest := dial(t, srv, nil)
	send(t, guest, "join_room", map[string]any{"roomId": "jam", "userProfile": map[string]any{"displayName": "G"}})
	if await(t, guest, "receive_room_state").Get("isDJ").Bool() {
		t.Fatal("guest is not a DJ")
	}

	send(t, guest, "add_to_queue", map[string]any{"roomId": "jam", "song": map[string]any{"id": "a", "title": "A"}})
	if await(t, dj, "receive_play_song").Get("track.id").String() != "a" {
		t.Fatal("dj did not hear the first song start")
	}

	send(t, guest, "send_pause", map[string]any{"roomId": "jam"})
	if msg := await(t, guest, "error").Get("message").String(); msg != "Only DJs can control playback" {
		t.Fatalf("guest pause: %q", msg)
	}

	send(t, dj, "send_pause", map[string]any{"roomId": "jam"})
	await(t, guest, "receive_pause")

	send(t, guest, "ping", nil)
	await(t, guest, "pong")

	resp, err := http.Get(srv.URL + "/api/rooms/jam")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap struct {
		RoomID    string            `json:"roomId"`
		IsPlaying bool              `json:"isPlaying"`
		Listeners []json.RawMessage `json:"listeners"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.RoomID != "jam" || snap.IsPlaying || len(snap.Listeners) != 2 {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	srv := newServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer nope"}})
	if err == nil {
		t.Fatal("dial must fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestRoomsEndpoints(t *testing.T) {
	srv := newServer(t)

	for path, want := range map[string]int{
		"/healthz":        http.StatusOK,
		"/api/rooms":      http.StatusOK,
		"/api/rooms/nope": http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: status %d, want %d", path, resp.StatusCode, want)
		}
	}
}
