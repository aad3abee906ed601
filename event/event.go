// Package event implements the kernel event bus: callbacks bound to an
// event type fire when a previously enqueued event of that type is
// drained from one of two FIFO queues, kernel-origin and user-origin.
//
// Grounded on the original core's core/event.c, which keeps one AVL tree
// of (type -> handler list, post list) blocks and two plain FIFO queues.
// The original's event_handle determines which single queue to drain by
// inspecting the address range of an opaque data pointer passed in by
// its caller -- a trick with no Go equivalent worth keeping. This
// package's Handle instead always drains the kernel queue to empty
// before starting on the user queue, so kernel-origin events (which
// typically represent higher-priority system conditions) are never left
// waiting behind a long run of user-origin events.
package event

import (
	"container/list"

	"github.com/Dreaded-Gnu/kernel/dispatch"
)

// Origin marks which side of the trust boundary raised an event.
type Origin int

const (
	OriginKernel Origin = iota
	OriginUser
)

func (o Origin) String() string {
	if o == OriginKernel {
		return "kernel"
	}
	return "user"
}

// Type is an event identifier; the zero value is reserved.
type Type uint32

// Callback receives the origin and type of the event being delivered.
type Callback func(origin Origin, typ Type)

// Bus owns the handler table and the two origin queues.
type Bus struct {
	table  *dispatch.Table
	kernel *list.List
	user   *list.List
}

// New constructs an empty event bus.
func New() *Bus {
	return &Bus{
		table:  dispatch.New(),
		kernel: list.New(),
		user:   list.New(),
	}
}

// Bind registers a callback for typ, in the pre chain unless post is
// true.
func (b *Bus) Bind(typ Type, post bool, cb Callback) *dispatch.Handle {
	phase := dispatch.Pre
	if post {
		phase = dispatch.Post
	}
	key := dispatch.Key{Domain: dispatch.DomainEvent, ID: uint32(typ)}
	return b.table.Register(key, phase, func(_ dispatch.Key, arg interface{}) {
		o := arg.(Origin)
		cb(o, typ)
	})
}

// Unbind removes a callback previously returned by Bind.
func (b *Bus) Unbind(h *dispatch.Handle) {
	b.table.Unregister(h)
}

// Enqueue appends typ to origin's queue. Handle will deliver it on a
// later call; Enqueue itself never runs a callback.
func (b *Bus) Enqueue(typ Type, origin Origin) {
	queue := b.queueFor(origin)
	queue.PushBack(typ)
}

func (b *Bus) queueFor(origin Origin) *list.List {
	if origin == OriginKernel {
		return b.kernel
	}
	return b.user
}

// Handle drains the kernel queue to empty, then the user queue to empty,
// dispatching every queued event's pre and post chains as it goes. An
// event bound to nothing is simply discarded, matching the original's
// silent skip of an unmatched type.
func (b *Bus) Handle() {
	b.drain(b.kernel, OriginKernel)
	b.drain(b.user, OriginUser)
}

func (b *Bus) drain(queue *list.List, origin Origin) {
	for {
		front := queue.Front()
		if front == nil {
			return
		}
		queue.Remove(front)
		typ := front.Value.(Type)
		b.table.Dispatch(dispatch.Key{Domain: dispatch.DomainEvent, ID: uint32(typ)}, origin)
	}
}

// Pending reports how many events are currently queued, summed across
// both origins -- used by tests and by a caller deciding whether it is
// worth invoking Handle at all.
func (b *Bus) Pending() int {
	return b.kernel.Len() + b.user.Len()
}
