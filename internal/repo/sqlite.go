package repo

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the conversation log in a local SQLite database.
// Timestamps are stored as unix seconds so that range comparisons stay
// numeric regardless of timezone.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	loc    *time.Location
}

// NewSQLite opens the SQLite database at path.
func NewSQLite(ctx context.Context, databasePath string, loc *time.Location, logger *slog.Logger) (*SQLiteStore, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}

	// Busy timeout and WAL mode are recommended for SQLite concurrency.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "repo_sqlite"),
		loc:    loc,
	}, nil
}

// Close releases the database connection.
func (r *SQLiteStore) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// Ping ensures the database is reachable.
func (r *SQLiteStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations applies the sqlite/ migration files in lexicographical order.
func (r *SQLiteStore) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	entries, err := fs.ReadDir(filesystem, "sqlite")
	if err != nil {
		return fmt.Errorf("read sqlite migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sqlBytes, err := fs.ReadFile(filesystem, "sqlite/"+entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(sqlBytes) == 0 {
			continue
		}
		if _, err := r.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// SaveMessage appends a message row and upserts the contact in one
// transaction.
func (r *SQLiteStore) SaveMessage(ctx context.Context, msg Message, displayName string) error {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	ts := at.Unix()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save message: %w", err)
	}
	defer tx.Rollback()

	const upsertContact = `
INSERT INTO contacts (phone, name, created_at, last_contact_at)
VALUES (?, COALESCE(NULLIF(?, ''), 'Cliente'), ?, ?)
ON CONFLICT (phone) DO UPDATE SET
    last_contact_at = excluded.last_contact_at,
    name = CASE WHEN ? <> '' THEN ? ELSE contacts.name END;
`
	if _, err := tx.ExecContext(ctx, upsertContact, msg.Phone, displayName, ts, ts, displayName, displayName); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}

	const insertMessage = `
INSERT INTO messages (id, phone, body, sender, created_at)
VALUES (?, ?, ?, ?, ?);
`
	if _, err := tx.ExecContext(ctx, insertMessage, uuid.NewString(), msg.Phone, msg.Body, string(msg.Sender), ts); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save message: %w", err)
	}
	return nil
}

// ListMessages returns messages in chronological order, optionally filtered
// by participant.
func (r *SQLiteStore) ListMessages(ctx context.Context, phone string) ([]Message, error) {
	q := `SELECT id, phone, body, sender, created_at FROM messages`
	args := []any{}
	if phone != "" {
		q += ` WHERE phone = ?`
		args = append(args, phone)
	}
	q += ` ORDER BY created_at ASC, id ASC;`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var sender string
		var ts int64
		if err := rows.Scan(&m.ID, &m.Phone, &m.Body, &sender, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = Sender(sender)
		m.CreatedAt = time.Unix(ts, 0).In(r.loc)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// ListContacts returns contacts with message aggregates, most recently
// contacted first.
func (r *SQLiteStore) ListContacts(ctx context.Context) ([]Contact, error) {
	const q = `
SELECT c.phone, c.name, c.created_at, c.last_contact_at,
       COUNT(m.id), MAX(m.created_at)
FROM contacts c
LEFT JOIN messages m ON m.phone = c.phone
GROUP BY c.phone
ORDER BY c.last_contact_at DESC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		var createdAt, lastContact int64
		var lastMessage sql.NullInt64
		if err := rows.Scan(&c.Phone, &c.Name, &createdAt, &lastContact, &c.MessageCount, &lastMessage); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0).In(r.loc)
		c.LastContactAt = time.Unix(lastContact, 0).In(r.loc)
		if lastMessage.Valid {
			ts := time.Unix(lastMessage.Int64, 0).In(r.loc)
			c.LastMessageAt = &ts
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}

// SaveSchedule persists a confirmed booking.
func (r *SQLiteStore) SaveSchedule(ctx context.Context, s Schedule) (*Schedule, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	const q = `
INSERT INTO schedules (id, phone, name, schedule_date, schedule_time, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`
	_, err := r.db.ExecContext(ctx, q, s.ID, s.Phone, s.Name, s.Date.Unix(), s.Slot, s.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	s.Status = StatusScheduled
	return &s, nil
}

// ListSchedules returns bookings ordered by date descending then slot
// ascending, with the status derived against now.
func (r *SQLiteStore) ListSchedules(ctx context.Context, now time.Time) ([]Schedule, error) {
	const q = `
SELECT id, phone, name, schedule_date, schedule_time, created_at
FROM schedules
ORDER BY schedule_date DESC, schedule_time ASC;
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var s Schedule
		var date, createdAt int64
		if err := rows.Scan(&s.ID, &s.Phone, &s.Name, &date, &s.Slot, &createdAt); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		s.Date = time.Unix(date, 0).In(r.loc)
		s.CreatedAt = time.Unix(createdAt, 0).In(r.loc)
		s.Status = statusAt(s.Date, now)
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

// Stats computes the dashboard rollup.
func (r *SQLiteStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM contacts;`, &stats.TotalContacts},
		{`SELECT COUNT(*) FROM messages;`, &stats.TotalMessages},
		{`SELECT COUNT(*) FROM schedules;`, &stats.TotalSchedules},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count stats: %w", err)
		}
	}

	todayStart := dayStart(now, r.loc).Unix()
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at >= ?;`, todayStart,
	).Scan(&stats.MessagesToday); err != nil {
		return nil, fmt.Errorf("count today messages: %w", err)
	}

	weekStart := now.Add(-7 * 24 * time.Hour).Unix()
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at >= ?;`, weekStart,
	).Scan(&stats.MessagesLast7Days); err != nil {
		return nil, fmt.Errorf("count weekly messages: %w", err)
	}

	return stats, nil
}
