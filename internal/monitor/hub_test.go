package monitor_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jensholdgaard/trinity/internal/encounter"
	"github.com/jensholdgaard/trinity/internal/monitor"
)

type fakeSource struct {
	mu   sync.Mutex
	list []encounter.Encounter
	subs []func(encounter.Change)
	// afterList runs once, right after the next OnHold call.
	afterList func()
}

func (f *fakeSource) OnHold() []encounter.Encounter {
	f.mu.Lock()
	out := append([]encounter.Encounter(nil), f.list...)
	hook := f.afterList
	f.afterList = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out
}

func (f *fakeSource) Subscribe(fn func(encounter.Change)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() {}
}

func (f *fakeSource) emit(c encounter.Change) {
	f.mu.Lock()
	var subs []func(encounter.Change)
	subs = append(subs, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

var pending = encounter.Encounter{
	ID:        "enc-1",
	Kind:      encounter.Attack,
	Player:    42,
	Manpower:  100,
	ResolveAt: time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC),
}

func TestListHandler(t *testing.T) {
	src := &fakeSource{list: []encounter.Encounter{pending}}
	hub := monitor.NewHub(src, slog.Default())

	rec := httptest.NewRecorder()
	hub.ListHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/encounters", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var got []encounter.Encounter
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "enc-1" || got[0].Player != 42 {
		t.Errorf("got %+v", got)
	}
	if !strings.Contains(rec.Body.String(), `"player_id":"42"`) {
		t.Errorf("player id not encoded as a string: %s", rec.Body.String())
	}
}

func TestHub_StreamsChanges(t *testing.T) {
	src := &fakeSource{list: []encounter.Encounter{pending}}
	hub := monitor.NewHub(src, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap struct {
		Type    string                `json:"type"`
		Payload []encounter.Encounter `json:"payload"`
	}
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if snap.Type != monitor.TypeSnapshot || len(snap.Payload) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}

	src.emit(encounter.Change{Encounter: pending, Resolved: true})

	var msg struct {
		Type    string              `json:"type"`
		Payload encounter.Encounter `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading change: %v", err)
	}
	if msg.Type != monitor.TypeResolved || msg.Payload.ID != "enc-1" {
		t.Errorf("change = %+v", msg)
	}
}

func TestHub_ChangeDuringSnapshotIsDelivered(t *testing.T) {
	src := &fakeSource{list: []encounter.Encounter{pending}}
	added := encounter.Encounter{ID: "enc-2", Kind: encounter.Expedition, Player: 43}
	src.afterList = func() {
		src.emit(encounter.Change{Encounter: added})
	}
	hub := monitor.NewHub(src, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap monitor.Message
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if snap.Type != monitor.TypeSnapshot {
		t.Fatalf("first message type = %q, want %q", snap.Type, monitor.TypeSnapshot)
	}

	var msg struct {
		Type    string              `json:"type"`
		Payload encounter.Encounter `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading change: %v", err)
	}
	if msg.Type != monitor.TypeAdded || msg.Payload.ID != "enc-2" {
		t.Errorf("change = %+v, want enc-2 added", msg)
	}
}
