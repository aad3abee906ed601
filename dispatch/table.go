// Package dispatch implements the callback-chain fabric shared by the
// interrupt controller and the event bus: both register ordered chains of
// handlers against a (domain, key) pair and fire them in two phases:
// every pre handler, then every post handler.
//
// Grounded on the original core's event.c/irq.c pattern of a fixed-size
// table of handler lists indexed by IRQ number or event id, generalized
// here into one generic table keyed by a small Domain tag plus a uint32,
// since both registries are otherwise structurally identical.
package dispatch

import "container/list"

// Domain tags which subsystem a Key belongs to, so the interrupt
// controller's normal/fast/software tables and the event bus can share
// one Table instance without key collisions.
type Domain uint8

const (
	DomainIRQNormal Domain = iota
	DomainIRQFast
	DomainIRQSoftware
	DomainEvent
)

// Key identifies one dispatch slot: an IRQ number within a Domain, or an
// event id within DomainEvent.
type Key struct {
	Domain Domain
	ID     uint32
}

// Phase selects which half of a slot's callback chain a handler joins.
type Phase int

const (
	// Pre handlers run first when a key is dispatched.
	Pre Phase = iota
	// Post handlers run after every Pre handler of the same key.
	Post
)

// Handler receives the key being dispatched and a caller-defined payload
// (the original core passes a bare IRQ number or event pointer; here both
// collapse to an interface{} the caller and its handlers agree on).
type Handler func(key Key, arg interface{})

type slot struct {
	pre  *list.List
	post *list.List
}

// Table is a registry of ordered pre/post handler chains keyed by
// (Domain, ID).
type Table struct {
	slots map[Key]*slot
}

// New returns an empty dispatch table.
func New() *Table {
	return &Table{slots: make(map[Key]*slot)}
}

// Handle identifies one registered callback, returned by Register so the
// caller can later Unregister it.
type Handle struct {
	key   Key
	phase Phase
	elem  *list.Element
}

// Register appends h to key's pre or post chain, returning a Handle that
// Unregister can later use to remove exactly this callback.
func (t *Table) Register(key Key, phase Phase, h Handler) *Handle {
	s, ok := t.slots[key]
	if !ok {
		s = &slot{pre: list.New(), post: list.New()}
		t.slots[key] = s
	}

	chain := s.pre
	if phase == Post {
		chain = s.post
	}

	elem := chain.PushBack(h)
	return &Handle{key: key, phase: phase, elem: elem}
}

// Unregister removes the callback h identifies. A no-op if already
// removed. Once both of the key's chains are empty, the slot itself is
// dropped from the table rather than left behind as a dangling entry.
func (t *Table) Unregister(h *Handle) {
	s, ok := t.slots[h.key]
	if !ok {
		return
	}
	chain := s.pre
	if h.phase == Post {
		chain = s.post
	}
	chain.Remove(h.elem)

	if s.pre.Len() == 0 && s.post.Len() == 0 {
		delete(t.slots, h.key)
	}
}

// Dispatch runs every pre handler registered for key, in registration
// order, then every post handler, in registration order. A key with no
// registrations is a silent no-op: most IRQ lines and event ids are
// never bound by anything.
func (t *Table) Dispatch(key Key, arg interface{}) {
	s, ok := t.slots[key]
	if !ok {
		return
	}
	for e := s.pre.Front(); e != nil; e = e.Next() {
		e.Value.(Handler)(key, arg)
	}
	for e := s.post.Front(); e != nil; e = e.Next() {
		e.Value.(Handler)(key, arg)
	}
}

// Bound reports whether key has any pre or post handler registered.
func (t *Table) Bound(key Key) bool {
	s, ok := t.slots[key]
	if !ok {
		return false
	}
	return s.pre.Len() > 0 || s.post.Len() > 0
}
