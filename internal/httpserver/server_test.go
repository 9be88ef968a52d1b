package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Vtrbr2/message-ia-bot/internal/metrics"
	"github.com/Vtrbr2/message-ia-bot/internal/repo"
)

type fakeStore struct {
	contacts  []repo.Contact
	messages  []repo.Message
	schedules []repo.Schedule
	stats     repo.Stats
	lastPhone string
}

func (f *fakeStore) ListContacts(context.Context) ([]repo.Contact, error) {
	return f.contacts, nil
}

func (f *fakeStore) ListMessages(_ context.Context, phone string) ([]repo.Message, error) {
	f.lastPhone = phone
	return f.messages, nil
}

func (f *fakeStore) ListSchedules(context.Context, time.Time) ([]repo.Schedule, error) {
	return f.schedules, nil
}

func (f *fakeStore) Stats(context.Context, time.Time) (*repo.Stats, error) {
	return &f.stats, nil
}

type fakeTransport struct {
	connected bool
	identity  string
}

func (f *fakeTransport) Status() (bool, string) { return f.connected, f.identity }

func newTestServer(store *fakeStore, transport *fakeTransport) *Server {
	return New(":0", slog.Default(), metrics.Registry("test"), Dependencies{
		Store:     store,
		Transport: transport,
	})
}

func TestContactsEndpointReturnsEmptyArray(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeTransport{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/contacts", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestMessagesEndpointForwardsFilter(t *testing.T) {
	store := &fakeStore{messages: []repo.Message{{ID: "1", Phone: "55", Body: "oi", Sender: repo.SenderUser}}}
	srv := newTestServer(store, &fakeTransport{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/messages?phone=55", nil))

	if store.lastPhone != "55" {
		t.Fatalf("expected phone filter forwarded, got %q", store.lastPhone)
	}
	var got []repo.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Body != "oi" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestTemplatesEndpointServesCatalog(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeTransport{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/templates", nil))

	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 40 {
		t.Fatalf("expected 40 templates, got %d", len(got))
	}
}

func TestStatsEndpoint(t *testing.T) {
	store := &fakeStore{stats: repo.Stats{TotalContacts: 2, TotalMessages: 9}}
	srv := newTestServer(store, &fakeTransport{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/stats", nil))

	var got repo.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalContacts != 2 || got.TotalMessages != 9 {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestHealthReflectsTransportState(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeTransport{connected: false})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "OK" || got["transport"] != "Disconnected" {
		t.Fatalf("unexpected health payload %+v", got)
	}
}

func TestTransportStatusNullIdentity(t *testing.T) {
	srv := newTestServer(&fakeStore{}, &fakeTransport{connected: true, identity: ""})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/transport-status", nil))

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["connected"] != true {
		t.Fatalf("expected connected true, got %+v", got)
	}
	if got["identity"] != nil {
		t.Fatalf("expected null identity, got %+v", got["identity"])
	}
}
