// Package session drives a review session over the items due today.
//
// A Machine is not safe for concurrent use; it is meant to be driven by a single
// foreground flow. Every operation returns a Snapshot of the resulting state.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/wordkeeper/internal/errs"
	"github.com/and161185/wordkeeper/internal/model"
	"github.com/and161185/wordkeeper/internal/srs"
)

// State of a review session.
type State int

const (
	Idle State = iota
	Active
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ItemWriter persists scheduling results on items.
type ItemWriter interface {
	UpdateFields(ctx context.Context, id, ownerID uuid.UUID, p model.ItemPatch) error
}

// ProgressWriter appends review events.
type ProgressWriter interface {
	InsertPending(ctx context.Context, rec *model.ProgressRecord) error
}

// Kicker starts a background sync for an owner.
type Kicker interface {
	Kick(ownerID uuid.UUID)
}

// Snapshot is a read-only view of the machine. Current is a copy.
type Snapshot struct {
	State     State
	Current   *model.VocabularyItem
	Index     int
	Total     int
	Completed int
}

// Machine is the review session state machine.
type Machine struct {
	items    ItemWriter
	progress ProgressWriter
	sync     Kicker
	log      *zap.Logger

	// Now is the clock used for due filtering and review timestamps.
	Now func() time.Time

	state     State
	owner     uuid.UUID
	queue     []model.VocabularyItem
	cursor    int
	completed int
}

// New builds an idle machine. sync may be nil.
func New(items ItemWriter, progress ProgressWriter, sync Kicker, log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{items: items, progress: progress, sync: sync, log: log, Now: time.Now}
}

// Start begins a session over the owner's items that are due today.
// With nothing due the machine goes back to Idle; that is not an error.
func (m *Machine) Start(ownerID uuid.UUID, due []model.VocabularyItem) Snapshot {
	today := m.Now()
	queue := make([]model.VocabularyItem, 0, len(due))
	for _, it := range due {
		if it.OwnerID != ownerID || !srs.IsDue(it.NextReviewDate, today) {
			continue
		}
		queue = append(queue, it.Clone())
	}

	m.owner = ownerID
	m.cursor, m.completed = 0, 0
	if len(queue) == 0 {
		m.state, m.queue = Idle, nil
		return m.Snapshot()
	}
	m.state, m.queue = Active, queue
	m.log.Debug("review session started", zap.String("owner", ownerID.String()), zap.Int("due", len(queue)))
	return m.Snapshot()
}

// Submit schedules the current item with assessment a, stores the result and moves on.
// On error the session is left as it was.
func (m *Machine) Submit(ctx context.Context, itemID uuid.UUID, a srs.Assessment) (Snapshot, error) {
	if m.state != Active {
		return m.Snapshot(), errs.ErrSessionNotActive
	}
	if !a.IsValid() {
		return m.Snapshot(), fmt.Errorf("%w: %d", srs.ErrInvalidAssessment, int(a))
	}
	cur := &m.queue[m.cursor]
	if cur.ID != itemID {
		return m.Snapshot(), errs.Validation("item %s is not the current item", itemID)
	}

	now := m.Now()
	review, err := srs.Next(cur.SRS(), a, now)
	if err != nil {
		return m.Snapshot(), err
	}
	if err := m.items.UpdateFields(ctx, cur.ID, m.owner, model.ReviewPatch(review, now)); err != nil {
		return m.Snapshot(), err
	}

	rec := model.ProgressRecord{
		ID:              uuid.Must(uuid.NewV4()),
		OwnerID:         m.owner,
		ItemID:          cur.ID,
		Assessment:      a,
		IntervalDays:    review.IntervalDays,
		RepetitionCount: review.RepetitionCount,
		EasinessFactor:  review.EasinessFactor,
		NextReviewDate:  review.NextReviewDate,
		ReviewedAt:      now,
	}
	if err := m.progress.InsertPending(ctx, &rec); err != nil {
		// The item already carries the new schedule; the audit trail entry is lost.
		m.log.Warn("record review progress", zap.String("item", cur.ID.String()), zap.Error(err))
	}

	cur.IntervalDays = review.IntervalDays
	cur.RepetitionCount = review.RepetitionCount
	cur.EasinessFactor = review.EasinessFactor
	cur.NextReviewDate = review.NextReviewDate
	cur.LastReviewedAt = &now
	cur.SyncStatus = model.StatusPending

	m.completed++
	m.cursor++
	if m.cursor >= len(m.queue) {
		m.finish()
	}
	if m.sync != nil {
		m.sync.Kick(m.owner)
	}
	return m.Snapshot(), nil
}

// Advance moves the cursor by delta. Moving outside the queue is a no-op.
func (m *Machine) Advance(delta int) Snapshot {
	if m.state != Active {
		return m.Snapshot()
	}
	if next := m.cursor + delta; next >= 0 && next < len(m.queue) {
		m.cursor = next
	}
	return m.Snapshot()
}

// RemoveItem drops an item from the queue, e.g. after the user deleted it.
// The cursor keeps pointing at the item that followed the removed one.
func (m *Machine) RemoveItem(itemID uuid.UUID) Snapshot {
	if m.state != Active {
		return m.Snapshot()
	}
	i := m.indexOf(itemID)
	if i < 0 {
		return m.Snapshot()
	}
	m.queue = append(m.queue[:i], m.queue[i+1:]...)
	if len(m.queue) == 0 {
		m.finish()
		return m.Snapshot()
	}
	if i < m.cursor {
		m.cursor--
	}
	if m.cursor >= len(m.queue) {
		m.cursor = len(m.queue) - 1
	}
	return m.Snapshot()
}

// UpdateItemImage replaces the image reference of a queued item.
func (m *Machine) UpdateItemImage(itemID uuid.UUID, url string) Snapshot {
	if i := m.indexOf(itemID); i >= 0 {
		m.queue[i].ImageURL = url
	}
	return m.Snapshot()
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Snapshot returns the current view.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{State: m.state, Index: m.cursor, Total: len(m.queue), Completed: m.completed}
	if m.state == Active && m.cursor < len(m.queue) {
		cur := m.queue[m.cursor].Clone()
		s.Current = &cur
	}
	return s
}

func (m *Machine) finish() {
	m.state = Complete
	m.queue = nil
	m.cursor = 0
	m.log.Debug("review session complete", zap.String("owner", m.owner.String()), zap.Int("reviewed", m.completed))
}

func (m *Machine) indexOf(id uuid.UUID) int {
	for i := range m.queue {
		if m.queue[i].ID == id {
			return i
		}
	}
	return -1
}
