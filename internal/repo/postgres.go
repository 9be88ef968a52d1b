package repo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the conversation log in Postgres.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	loc    *time.Location
}

// NewPostgres opens a connection pool with the desired search_path.
func NewPostgres(ctx context.Context, databaseURL, schema string, loc *time.Location, logger *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "repo_postgres"),
		loc:    loc,
	}
	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the connection pool.
func (r *PostgresStore) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (r *PostgresStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations applies the postgres/ migration files.
func (r *PostgresStore) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return applyPostgresMigrations(ctx, r.pool, filesystem, "postgres")
}

// SaveMessage appends a message row and upserts the contact in one
// transaction.
func (r *PostgresStore) SaveMessage(ctx context.Context, msg Message, displayName string) error {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const upsertContact = `
INSERT INTO contacts (phone, name, created_at, last_contact_at)
VALUES ($1, COALESCE(NULLIF($2, ''), 'Cliente'), $3, $3)
ON CONFLICT (phone) DO UPDATE SET
    last_contact_at = EXCLUDED.last_contact_at,
    name = CASE WHEN $2 <> '' THEN $2 ELSE contacts.name END;
`
		if _, err := tx.Exec(ctx, upsertContact, msg.Phone, displayName, at); err != nil {
			return fmt.Errorf("upsert contact: %w", err)
		}

		const insertMessage = `
INSERT INTO messages (phone, body, sender, created_at)
VALUES ($1, $2, $3, $4);
`
		if _, err := tx.Exec(ctx, insertMessage, msg.Phone, msg.Body, string(msg.Sender), at); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

// ListMessages returns messages in chronological order, optionally filtered
// by participant.
func (r *PostgresStore) ListMessages(ctx context.Context, phone string) ([]Message, error) {
	q := `SELECT id, phone, body, sender, created_at FROM messages`
	args := []any{}
	if phone != "" {
		q += ` WHERE phone = $1`
		args = append(args, phone)
	}
	q += ` ORDER BY created_at ASC, id ASC;`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var sender string
		if err := rows.Scan(&m.ID, &m.Phone, &m.Body, &sender, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = Sender(sender)
		m.CreatedAt = m.CreatedAt.In(r.loc)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// ListContacts returns contacts with message aggregates, most recently
// contacted first.
func (r *PostgresStore) ListContacts(ctx context.Context) ([]Contact, error) {
	const q = `
SELECT c.phone, c.name, c.created_at, c.last_contact_at,
       COUNT(m.id), MAX(m.created_at)
FROM contacts c
LEFT JOIN messages m ON m.phone = c.phone
GROUP BY c.phone, c.name, c.created_at, c.last_contact_at
ORDER BY c.last_contact_at DESC;
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		var lastMessage *time.Time
		if err := rows.Scan(&c.Phone, &c.Name, &c.CreatedAt, &c.LastContactAt, &c.MessageCount, &lastMessage); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.CreatedAt = c.CreatedAt.In(r.loc)
		c.LastContactAt = c.LastContactAt.In(r.loc)
		if lastMessage != nil {
			ts := lastMessage.In(r.loc)
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
func (r *PostgresStore) SaveSchedule(ctx context.Context, s Schedule) (*Schedule, error) {
	const q = `
INSERT INTO schedules (phone, name, schedule_date, schedule_time)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at;
`
	if err := r.pool.QueryRow(ctx, q, s.Phone, s.Name, s.Date, s.Slot).Scan(&s.ID, &s.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	s.Status = StatusScheduled
	return &s, nil
}

// ListSchedules returns bookings ordered by date descending then slot
// ascending, with the status derived against now.
func (r *PostgresStore) ListSchedules(ctx context.Context, now time.Time) ([]Schedule, error) {
	const q = `
SELECT id, phone, name, schedule_date, schedule_time, created_at
FROM schedules
ORDER BY schedule_date DESC, schedule_time ASC;
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.Phone, &s.Name, &s.Date, &s.Slot, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		s.Date = s.Date.In(r.loc)
		s.CreatedAt = s.CreatedAt.In(r.loc)
		s.Status = statusAt(s.Date, now)
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

// Stats computes the dashboard rollup.
func (r *PostgresStore) Stats(ctx context.Context, now time.Time) (*Stats, error) {
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
		if err := r.pool.QueryRow(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count stats: %w", err)
		}
	}

	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at >= $1;`, dayStart(now, r.loc),
	).Scan(&stats.MessagesToday); err != nil {
		return nil, fmt.Errorf("count today messages: %w", err)
	}

	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE created_at >= $1;`, now.Add(-7*24*time.Hour),
	).Scan(&stats.MessagesLast7Days); err != nil {
		return nil, fmt.Errorf("count weekly messages: %w", err)
	}

	return stats, nil
}
