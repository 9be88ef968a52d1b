package repo

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Vtrbr2/message-ia-bot/migrations"
)

var testLoc = time.FixedZone("BRT", -3*3600)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	store, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"), testLoc, slog.Default())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return store
}

func at(hour, min int) time.Time {
	return time.Date(2024, 6, 15, hour, min, 0, 0, testLoc)
}

func TestSaveMessageUpsertsContacts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	msgs := []struct {
		phone string
		name  string
		when  time.Time
	}{
		{"5511999990001", "Ana", at(10, 0)},
		{"5511999990001", "Ana", at(10, 5)},
		{"5511999990002", "Bruno", at(10, 10)},
	}
	for _, m := range msgs {
		err := store.SaveMessage(ctx, Message{Phone: m.phone, Body: "oi", Sender: SenderUser, CreatedAt: m.when}, m.name)
		if err != nil {
			t.Fatalf("save message: %v", err)
		}
	}

	contacts, err := store.ListContacts(ctx)
	if err != nil {
		t.Fatalf("list contacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}
	if contacts[0].Phone != "5511999990002" {
		t.Fatalf("expected most recent contact first, got %s", contacts[0].Phone)
	}
	if contacts[1].MessageCount != 2 {
		t.Fatalf("expected aggregated count 2, got %d", contacts[1].MessageCount)
	}
	if contacts[1].LastMessageAt == nil || !contacts[1].LastMessageAt.Equal(at(10, 5)) {
		t.Fatalf("expected derived last message at 10:05, got %v", contacts[1].LastMessageAt)
	}
	if contacts[1].Name != "Ana" {
		t.Fatalf("expected display name preserved, got %s", contacts[1].Name)
	}
}

func TestContactNameIsKeptWhenLookupFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SaveMessage(ctx, Message{Phone: "551100", Body: "a", Sender: SenderUser, CreatedAt: at(9, 0)}, "Carla"); err != nil {
		t.Fatal(err)
	}
	// An empty display name must not overwrite the stored one.
	if err := store.SaveMessage(ctx, Message{Phone: "551100", Body: "b", Sender: SenderBot, CreatedAt: at(9, 1)}, ""); err != nil {
		t.Fatal(err)
	}

	contacts, err := store.ListContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if contacts[0].Name != "Carla" {
		t.Fatalf("expected Carla, got %s", contacts[0].Name)
	}
}

func TestListMessagesFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_ = store.SaveMessage(ctx, Message{Phone: "1", Body: "first", Sender: SenderUser, CreatedAt: at(8, 0)}, "")
	_ = store.SaveMessage(ctx, Message{Phone: "2", Body: "other", Sender: SenderUser, CreatedAt: at(8, 1)}, "")
	_ = store.SaveMessage(ctx, Message{Phone: "1", Body: "second", Sender: SenderBot, CreatedAt: at(8, 2)}, "")

	all, err := store.ListMessages(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
	if all[0].Body != "first" || all[2].Body != "second" {
		t.Fatalf("expected chronological ascending order, got %s .. %s", all[0].Body, all[2].Body)
	}

	filtered, err := store.ListMessages(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 messages for phone 1, got %d", len(filtered))
	}
	if filtered[1].Sender != SenderBot {
		t.Fatalf("expected bot reply second, got %s", filtered[1].Sender)
	}
}

func TestStatsCountsAndDayBoundary(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := at(12, 0)
	boundary := time.Date(2024, 6, 15, 0, 0, 0, 0, testLoc)

	_ = store.SaveMessage(ctx, Message{Phone: "1", Body: "old", Sender: SenderUser, CreatedAt: boundary.Add(-time.Second)}, "")
	_ = store.SaveMessage(ctx, Message{Phone: "1", Body: "midnight", Sender: SenderUser, CreatedAt: boundary}, "")
	_ = store.SaveMessage(ctx, Message{Phone: "2", Body: "noon", Sender: SenderUser, CreatedAt: now}, "")
	_ = store.SaveMessage(ctx, Message{Phone: "2", Body: "ancient", Sender: SenderUser, CreatedAt: now.Add(-8 * 24 * time.Hour)}, "")

	if _, err := store.SaveSchedule(ctx, Schedule{Phone: "1", Name: "Ana", Date: at(15, 0), Slot: "15:00"}); err != nil {
		t.Fatal(err)
	}

	stats, err := store.Stats(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalContacts != 2 {
		t.Fatalf("expected 2 contacts, got %d", stats.TotalContacts)
	}
	if stats.TotalMessages != 4 {
		t.Fatalf("expected 4 messages, got %d", stats.TotalMessages)
	}
	if stats.TotalSchedules != 1 {
		t.Fatalf("expected 1 schedule, got %d", stats.TotalSchedules)
	}
	// The message at exactly 00:00 belongs to today.
	if stats.MessagesToday != 2 {
		t.Fatalf("expected 2 messages today, got %d", stats.MessagesToday)
	}
	if stats.MessagesLast7Days != 3 {
		t.Fatalf("expected 3 messages in rolling week, got %d", stats.MessagesLast7Days)
	}
}

func TestSchedulesOrderingAndDerivedStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	day := func(d, hour int) time.Time {
		return time.Date(2024, 6, d, hour, 0, 0, 0, testLoc)
	}

	bookings := []Schedule{
		{Phone: "1", Name: "Ana", Date: day(14, 20), Slot: "20:00"},
		{Phone: "2", Name: "Bruno", Date: day(16, 13), Slot: "13:00"},
		{Phone: "3", Name: "Carla", Date: day(16, 15), Slot: "15:00"},
	}
	for _, b := range bookings {
		if _, err := store.SaveSchedule(ctx, b); err != nil {
			t.Fatal(err)
		}
	}

	now := day(15, 12)
	schedules, err := store.ListSchedules(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 3 {
		t.Fatalf("expected 3 schedules, got %d", len(schedules))
	}
	if schedules[0].Slot != "15:00" || schedules[1].Slot != "13:00" || schedules[2].Slot != "20:00" {
		t.Fatalf("expected newest booking first, got %s / %s / %s", schedules[0].Slot, schedules[1].Slot, schedules[2].Slot)
	}
	if schedules[2].Status != StatusCompleted {
		t.Fatalf("past booking should read completed, got %s", schedules[2].Status)
	}
	if schedules[0].Status != StatusScheduled {
		t.Fatalf("future booking should read scheduled, got %s", schedules[0].Status)
	}
}
