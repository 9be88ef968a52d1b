package repo

import (
	"context"
	"io/fs"
	"time"
)

// Store defines the persistence contract shared by both backends.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Conversation log. SaveMessage appends the row and upserts the contact:
	// an insert records created_at, an update bumps last_contact_at. A zero
	// CreatedAt means now.
	SaveMessage(ctx context.Context, msg Message, displayName string) error
	ListMessages(ctx context.Context, phone string) ([]Message, error)
	ListContacts(ctx context.Context) ([]Contact, error)

	// Bookings. Status is derived from now at read time.
	SaveSchedule(ctx context.Context, s Schedule) (*Schedule, error)
	ListSchedules(ctx context.Context, now time.Time) ([]Schedule, error)

	// Rollups. The "today" boundary is a calendar day in the store's
	// reference timezone; the 7-day window is a rolling comparison.
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
