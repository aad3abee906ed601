// Package irq is the interrupt controller's software side: registering
// handlers for normal, fast (FIQ), and software interrupt lines, and
// dispatching a line's handler chain when the architecture layer reports
// one has fired.
//
// Grounded on the original core's core/interrupt.c, which keeps three
// separate AVL-tree-backed registries (normal_interrupt, fast_interrupt,
// software_interrupt) each mapping an interrupt number to a pair of
// handler lists (handler, post). Here the three registries collapse into
// one dispatch.Table distinguished by Domain, and the two handler lists
// become that table's Pre/Post phases.
package irq

import (
	"github.com/Dreaded-Gnu/kernel/dispatch"
	"github.com/Dreaded-Gnu/kernel/kernel/errors"
	"github.com/Dreaded-Gnu/kernel/kernel/panic"
)

// Type selects which of the controller's three interrupt classes a
// number belongs to.
type Type int

const (
	Normal Type = iota
	Fast
	Software
)

func (t Type) domain() dispatch.Domain {
	switch t {
	case Fast:
		return dispatch.DomainIRQFast
	case Software:
		return dispatch.DomainIRQSoftware
	default:
		return dispatch.DomainIRQNormal
	}
}

// NestedMax bounds how deeply Handle may recurse: a normal-priority
// handler that re-enables interrupts and takes another interrupt before
// returning. Past this depth something is looping rather than making
// progress, and Controller refuses to descend further.
const NestedMax = 8

// Validator reports whether num is a line the target's interrupt
// controller actually has wired, so a typo'd registration fails loudly
// rather than silently never firing. Supplied by the board layer; nil
// disables the check (used by hosted tests, which have no real
// controller to validate against).
type Validator func(num uint32) bool

// Controller owns the three interrupt-type dispatch domains and the
// nested-interrupt depth counter.
type Controller struct {
	table    *dispatch.Table
	validate Validator
	depth    int
}

// New constructs a Controller. validate may be nil.
func New(validate Validator) *Controller {
	return &Controller{table: dispatch.New(), validate: validate}
}

// Register binds h to fire when num's interrupt is handled, in the pre
// chain unless post is true. Returns ErrInvalidIRQ if num fails the
// controller's Validator (Normal and Fast only; Software lines are
// software-defined and always accepted, mirroring the original core's
// validation only gating INTERRUPT_NORMAL/INTERRUPT_FAST).
func (c *Controller) Register(typ Type, num uint32, post bool, h func(context interface{})) (*dispatch.Handle, error) {
	if (typ == Normal || typ == Fast) && c.validate != nil && !c.validate(num) {
		return nil, errors.ErrInvalidIRQ
	}

	phase := dispatch.Pre
	if post {
		phase = dispatch.Post
	}

	key := dispatch.Key{Domain: typ.domain(), ID: num}
	return c.table.Register(key, phase, func(_ dispatch.Key, arg interface{}) {
		h(arg)
	}), nil
}

// Unregister removes a handler previously returned by Register.
func (c *Controller) Unregister(h *dispatch.Handle) {
	c.table.Unregister(h)
}

// Handle dispatches num's registered chain for the given type, passing
// context through to every handler. It tracks nesting depth and halts the
// kernel via panic.Panicf if a handler re-enables interrupts and takes
// another past NestedMax: a runaway nest is a programmer error, not a
// condition a caller can recover from.
func (c *Controller) Handle(typ Type, num uint32, context interface{}) error {
	if c.depth >= NestedMax {
		panic.Panicf("irq: nested interrupt overflow")
		return nil
	}

	c.depth++
	defer func() { c.depth-- }()

	c.table.Dispatch(dispatch.Key{Domain: typ.domain(), ID: num}, context)
	return nil
}

// Bound reports whether num has any handler registered for typ.
func (c *Controller) Bound(typ Type, num uint32) bool {
	return c.table.Bound(dispatch.Key{Domain: typ.domain(), ID: num})
}

// Depth returns the controller's current nested-handling depth, mostly
// useful for tests asserting Handle unwinds it correctly even when a
// handler panics up through it.
func (c *Controller) Depth() int {
	return c.depth
}
