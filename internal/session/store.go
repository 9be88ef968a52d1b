// Package session holds the volatile per-participant conversation state.
// Sessions live for the process lifetime only; the durable record of a
// finished interaction is the message/schedule log, not the session.
package session

import "sync"

// State enumerates the dialog states.
type State string

const (
	StateMenu                      State = "menu"
	StateAwaitingBudgetOption      State = "awaiting_budget_option"
	StateAwaitingTemplateSelection State = "awaiting_template_selection"
	StateAwaitingPaymentDecision   State = "awaiting_payment_decision"
	StateAwaitingScheduleSelection State = "awaiting_schedule_selection"
)

// Context is the transient data attached to a session. TemplateID is only
// meaningful while awaiting a payment decision.
type Context struct {
	DisplayName string
	TemplateID  int
}

// Session is one participant's dialog position.
type Session struct {
	State   State
	Context Context
}

// Patch merge-updates a session: nil fields leave the current value alone.
type Patch struct {
	DisplayName *string
	TemplateID  *int
}

type entry struct {
	// procMu serializes message processing for the participant; mu guards
	// the session value itself and is never held across fn in Do.
	procMu  sync.Mutex
	mu      sync.Mutex
	session Session
}

// Store keeps one session per participant with a per-participant exclusive
// execution lock.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{sessions: map[string]*entry{}}
}

func (s *Store) lookup(participant string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[participant]
	if !ok {
		e = &entry{session: Session{State: StateMenu}}
		s.sessions[participant] = e
	}
	return e
}

// Get returns a copy of the participant's session, creating a fresh
// menu-state session on first contact.
func (s *Store) Get(participant string) Session {
	e := s.lookup(participant)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Update merge-patches the context and optionally overwrites the state.
// Any transition back to the menu clears the context.
func (s *Store) Update(participant string, state *State, patch Patch) {
	e := s.lookup(participant)
	e.mu.Lock()
	defer e.mu.Unlock()

	if patch.DisplayName != nil {
		e.session.Context.DisplayName = *patch.DisplayName
	}
	if patch.TemplateID != nil {
		e.session.Context.TemplateID = *patch.TemplateID
	}
	if state != nil {
		if *state == StateMenu && e.session.State != StateMenu {
			e.session.Context = Context{}
		}
		e.session.State = *state
	}
}

// Do runs fn while holding the participant's exclusive execution lock. Two
// concurrent messages from the same participant are processed one after
// another; other participants proceed in parallel. fn may call Get and
// Update for the same participant.
func (s *Store) Do(participant string, fn func()) {
	e := s.lookup(participant)
	e.procMu.Lock()
	defer e.procMu.Unlock()
	fn()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
