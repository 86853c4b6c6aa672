// internal/game/engine.go
//
// Core game engine for a single tree-matching session.
// Responsibilities:
//   - Hold the mutable session: node occupants, available species, score
//     and counters.
//   - Apply placement attempts through the catalog's evaluator.
//   - Revert incorrect placements after a delay, putting the species back in
//     the available collection sorted by display name.
//   - Own the transient feedback message and its expiry.
//   - Notify subscribers with a fresh Snapshot after every change.
//
// Concurrency:
//   - All mutations, including timer callbacks, run under one mutex, so the
//     machine behaves as a single logical actor.
//   - Timer callbacks re-check the node occupant (or feedback sequence) they
//     were scheduled for and do nothing if it has changed.
//   - Subscribers are called in version order with no lock held, so they may
//     read State or even place a species from inside the callback. Whichever
//     goroutine commits first drains the queue; a commit made while another
//     goroutine is draining is delivered by that goroutine.
//   - Close ends the session: timers stop, further calls do nothing and Done
//     is closed so long-lived readers can hang up.

package game

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/robalobadob/oceantree/internal/catalog"
)

// Timing holds the fixed delays of the feedback/revert lifecycle.
type Timing struct {
	RevertDelay time.Duration // incorrect placement → species back in the pool
	NoteDelay   time.Duration // correct placement → educational note replaces the message
	FeedbackTTL time.Duration // any attempt → message cleared
}

// DefaultTiming mirrors the board's original pacing.
var DefaultTiming = Timing{
	RevertDelay: 3 * time.Second,
	NoteDelay:   2 * time.Second,
	FeedbackTTL: 4 * time.Second,
}

const successText = "Excellent!"

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the real clock, typically with a ManualClock in tests.
func WithClock(s Scheduler) Option { return func(m *Machine) { m.clock = s } }

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option { return func(m *Machine) { m.timing = t } }

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(m *Machine) { m.log = l } }

// slot is the mutable state of one tree node.
type slot struct {
	node      catalog.Node
	placed    *catalog.Species
	placement Placement
	gen       uint64 // changes on every new occupant
}

// Machine is the game state machine for one session.
type Machine struct {
	cat    *catalog.Catalog
	clock  Scheduler
	timing Timing
	log    zerolog.Logger

	mu        sync.Mutex
	slots     []*slot
	nodeIdx   map[string]int
	available []catalog.Species
	score     int
	correct   int
	total     int
	feedback  *Feedback
	version   uint64
	gen       uint64
	msgSeq    uint64
	timers    map[uint64]Timer
	timerID   uint64
	collator  *collate.Collator
	species   int

	subs    map[uint64]func(Snapshot)
	nextSub uint64
	closed  bool
	done    chan struct{}

	outMu    sync.Mutex
	outbox   []delivery
	draining bool
}

// delivery is one committed snapshot and the subscribers registered when it
// was committed.
type delivery struct {
	snap Snapshot
	subs []func(Snapshot)
}

// New builds a session from cat in its initial state.
func New(cat *catalog.Catalog, opts ...Option) *Machine {
	m := &Machine{
		cat:      cat,
		clock:    RealClock{},
		timing:   DefaultTiming,
		log:      zerolog.Nop(),
		timers:   make(map[uint64]Timer),
		subs:     make(map[uint64]func(Snapshot)),
		done:     make(chan struct{}),
		collator: collate.New(language.English, collate.IgnoreCase),
	}
	for _, o := range opts {
		o(m)
	}

	nodes := cat.Nodes()
	m.slots = make([]*slot, len(nodes))
	m.nodeIdx = make(map[string]int, len(nodes))
	for i, n := range nodes {
		m.slots[i] = &slot{node: n, placement: PlacementUnset}
		m.nodeIdx[n.ID] = i
	}
	m.available = cat.Species()
	m.species = len(m.available)
	return m
}

// Catalog returns the catalog the session was built from.
func (m *Machine) Catalog() *catalog.Catalog { return m.cat }

// State returns a snapshot of the current session.
func (m *Machine) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (m *Machine) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// AttemptPlacement tries to put speciesID on nodeID.
//
// The attempt is ignored (Accepted=false, no state change) when the node is
// unknown, already occupied, or the species is not in the available
// collection. Otherwise the species moves onto the node, score and counters
// are updated, and the follow-up timers are scheduled:
//   - correct: the educational note (if any) after NoteDelay;
//   - incorrect: the revert after RevertDelay;
//   - either: feedback expiry after FeedbackTTL.
func (m *Machine) AttemptPlacement(nodeID, speciesID string) Result {
	m.mu.Lock()
	i, ok := m.nodeIdx[nodeID]
	if !ok || m.closed {
		m.mu.Unlock()
		return Result{}
	}
	s := m.slots[i]
	if s.placed != nil {
		m.mu.Unlock()
		return Result{}
	}
	pos := m.availableIndex(speciesID)
	if pos < 0 {
		m.mu.Unlock()
		return Result{}
	}

	sp := m.available[pos]
	m.available = append(m.available[:pos], m.available[pos+1:]...)

	correct := m.cat.IsCorrect(nodeID, speciesID)
	m.gen++
	s.gen = m.gen
	s.placed = &sp
	s.placement = PlacementIncorrect
	if correct {
		s.placement = PlacementCorrect
		m.correct++
	}
	m.total++
	m.score += m.cat.Points(correct)

	m.msgSeq++
	seq := m.msgSeq
	if correct {
		m.feedback = &Feedback{Seq: seq, Kind: FeedbackSuccess, Text: successText}
		if note, ok := m.cat.EducationalNote(speciesID, nodeID); ok {
			m.scheduleLocked(m.timing.NoteDelay, func() bool { return m.showNote(seq, note) })
		}
	} else {
		m.feedback = &Feedback{
			Seq:  seq,
			Kind: FeedbackError,
			Text: "Not quite right! " + sp.Name + " doesn't belong in " + s.node.Label +
				". Think about its characteristics and try again!",
		}
		gen := s.gen
		m.scheduleLocked(m.timing.RevertDelay, func() bool { return m.revert(nodeID, speciesID, gen) })
	}
	m.scheduleLocked(m.timing.FeedbackTTL, func() bool { return m.clearFeedback(seq) })

	m.log.Debug().
		Str("node", nodeID).
		Str("species", speciesID).
		Bool("correct", correct).
		Int("score", m.score).
		Msg("placement")

	m.commitLocked()
	return Result{Accepted: true, Correct: correct}
}

// Reset discards every placement, restores the catalog's species order,
// zeroes score and counters and clears feedback. Pending timers are stopped;
// any that already started firing find nothing to act on.
func (m *Machine) Reset() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.stopTimersLocked()
	for _, s := range m.slots {
		s.placed = nil
		s.placement = PlacementUnset
	}
	m.available = m.cat.Species()
	m.score, m.correct, m.total = 0, 0, 0
	m.feedback = nil
	m.log.Debug().Msg("reset")
	m.commitLocked()
}

// Close ends the session. Pending timers are stopped, later placements and
// resets are ignored, and Done is closed. Subscribers are not notified.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimersLocked()
	m.subs = make(map[uint64]func(Snapshot))
	close(m.done)
	m.log.Debug().Msg("closed")
}

// Done is closed once Close has been called.
func (m *Machine) Done() <-chan struct{} { return m.done }

func (m *Machine) stopTimersLocked() {
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

// revert returns an incorrectly placed species to the pool if the node still
// holds the occupant this timer was scheduled for.
func (m *Machine) revert(nodeID, speciesID string, gen uint64) bool {
	s := m.slots[m.nodeIdx[nodeID]]
	if s.placed == nil || s.gen != gen || s.placed.ID != speciesID || s.placement != PlacementIncorrect {
		return false
	}
	sp := *s.placed
	s.placed = nil
	s.placement = PlacementUnset
	m.available = append(m.available, sp)
	sort.SliceStable(m.available, func(i, j int) bool {
		return m.collator.CompareString(m.available[i].Name, m.available[j].Name) < 0
	})
	m.log.Debug().Str("node", nodeID).Str("species", speciesID).Msg("revert")
	return true
}

func (m *Machine) showNote(seq uint64, note string) bool {
	if m.feedback == nil || m.feedback.Seq != seq {
		return false
	}
	m.feedback = &Feedback{Seq: seq, Kind: FeedbackSuccess, Text: note}
	return true
}

func (m *Machine) clearFeedback(seq uint64) bool {
	if m.feedback == nil || m.feedback.Seq != seq {
		return false
	}
	m.feedback = nil
	return true
}

// scheduleLocked arms a timer whose callback runs under m.mu and publishes a
// snapshot when fn reports a change.
func (m *Machine) scheduleLocked(d time.Duration, fn func() bool) {
	m.timerID++
	id := m.timerID
	m.timers[id] = m.clock.AfterFunc(d, func() {
		m.mu.Lock()
		if _, live := m.timers[id]; !live {
			m.mu.Unlock()
			return
		}
		delete(m.timers, id)
		if !fn() {
			m.mu.Unlock()
			return
		}
		m.commitLocked()
	})
}

// commitLocked bumps the version and publishes the new snapshot. It must be
// called with m.mu held and releases it.
func (m *Machine) commitLocked() {
	m.version++
	d := delivery{snap: m.snapshotLocked()}
	ids := make([]uint64, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		d.subs = append(d.subs, m.subs[id])
	}

	// Queued while mu is held, so the outbox is in version order.
	m.outMu.Lock()
	m.outbox = append(m.outbox, d)
	m.outMu.Unlock()
	m.mu.Unlock()
	m.drain()
}

// drain delivers queued snapshots until the outbox is empty, unless another
// goroutine is already doing so.
func (m *Machine) drain() {
	m.outMu.Lock()
	if m.draining {
		m.outMu.Unlock()
		return
	}
	m.draining = true
	for len(m.outbox) > 0 {
		d := m.outbox[0]
		m.outbox[0] = delivery{}
		m.outbox = m.outbox[1:]
		m.outMu.Unlock()
		for _, fn := range d.subs {
			fn(d.snap)
		}
		m.outMu.Lock()
	}
	m.draining = false
	m.outMu.Unlock()
}

func (m *Machine) availableIndex(speciesID string) int {
	for i, s := range m.available {
		if s.ID == speciesID {
			return i
		}
	}
	return -1
}

func (m *Machine) snapshotLocked() Snapshot {
	nodes := make([]NodeState, len(m.slots))
	for i, s := range m.slots {
		ns := NodeState{
			ID:             s.node.ID,
			Label:          s.node.Label,
			X:              s.node.X,
			Y:              s.node.Y,
			CorrectSpecies: append([]string(nil), s.node.CorrectSpecies...),
			Placement:      s.placement,
		}
		if s.placed != nil {
			sp := cloneSpecies(*s.placed)
			ns.Placed = &sp
		}
		nodes[i] = ns
	}
	avail := make([]catalog.Species, len(m.available))
	for i, s := range m.available {
		avail[i] = cloneSpecies(s)
	}
	status := StatusPlaying
	if len(avail) == 0 {
		status = StatusCompleted
	}
	var fb *Feedback
	if m.feedback != nil {
		f := *m.feedback
		fb = &f
	}
	return Snapshot{
		Version:             m.version,
		Nodes:               nodes,
		Available:           avail,
		Score:               m.score,
		CorrectPlacements:   m.correct,
		TotalPlacements:     m.total,
		IncorrectPlacements: m.total - m.correct,
		TotalSpecies:        m.species,
		Status:              status,
		Progress:            Progress(nodes),
		Feedback:            fb,
	}
}

func cloneSpecies(s catalog.Species) catalog.Species {
	s.Characteristics = append([]string(nil), s.Characteristics...)
	return s
}
