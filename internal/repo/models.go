package repo

import "time"

// Sender distinguishes who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ScheduleStatus is derived at read time from the booking date.
type ScheduleStatus string

const (
	StatusScheduled ScheduleStatus = "scheduled"
	StatusCompleted ScheduleStatus = "completed"
)

// Message is an append-only conversation log row.
type Message struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Body      string    `json:"body"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"timestamp"`
}

// Contact is the per-participant aggregate row. MessageCount and
// LastMessageAt are computed by aggregation over messages, never stored.
type Contact struct {
	Phone         string     `json:"phone"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastContactAt time.Time  `json:"last_contact"`
	MessageCount  int64      `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Schedule is a confirmed booking.
type Schedule struct {
	ID        string         `json:"id"`
	Phone     string         `json:"phone"`
	Name      string         `json:"name"`
	Date      time.Time      `json:"schedule_date"`
	Slot      string         `json:"schedule_time"`
	Status    ScheduleStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Stats is the rollup served on /stats.
type Stats struct {
	TotalContacts     int64 `json:"totalContacts"`
	TotalMessages     int64 `json:"totalMessages"`
	TotalSchedules    int64 `json:"totalSchedules"`
	MessagesToday     int64 `json:"messagesToday"`
	MessagesLast7Days int64 `json:"messagesLast7Days"`
}

// statusAt derives the booking status relative to now.
func statusAt(date, now time.Time) ScheduleStatus {
	if date.Before(now) {
		return StatusCompleted
	}
	return StatusScheduled
}

// dayStart returns the calendar-day boundary containing now in loc.
func dayStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
