package formz

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
)

// member is one child of a group. sub is the group's recomputation handler on
// the child; an inactive sub means the child is detached and its changes are
// not observed until it is subscribed again.
type member struct {
	name string
	node Node
	sub  Subscription
}

// aggregate folds member statuses into the group's flags.
type aggregate struct {
	changed    bool // ||
	empty      bool // &&
	complete   bool // &&
	validating bool // ||
	valid      bool // &&
	focused    bool // ||
	touched    bool // ||
	disabled   bool // &&
	length     int
}

func newAggregate() aggregate {
	return aggregate{
		empty:    true,
		complete: true,
		valid:    true,
		disabled: true,
	}
}

// add folds st into the aggregate. Skipped members still count towards
// focused, touched and disabled; add reports whether the member also
// contributes its value and error.
func (a *aggregate) add(st Status) bool {
	if st.Focused {
		a.focused = true
	}
	if st.Touched {
		a.touched = true
	}
	if !st.Disabled {
		a.disabled = false
	}
	if st.Skip {
		return false
	}

	a.length++
	if st.Changed {
		a.changed = true
	}
	if !st.Empty {
		a.empty = false
	}
	if !st.Complete {
		a.complete = false
	}
	if st.Validating {
		a.validating = true
	}
	if !st.Valid {
		a.valid = false
	}
	return true
}

// ownAsync is a group's own async validator over its aggregated value. A
// settled pass is kept so that recomputations which do not change the
// aggregate (focus, touch) keep its result instead of re-validating.
type ownAsync[V, E any] struct {
	fn      func(context.Context, V) E
	pending *pass[V, E]
	settled *pass[V, E]
}

func (o *ownAsync[V, E]) enabled() bool {
	return o.fn != nil
}

// layer resolves the own validator for value. When a settled result exists
// for value it is returned with ok set; otherwise the aggregate is still
// validating and, unless a pass for value is already in flight, a new pass is
// returned to be started. Must hold the group's state lock.
func (o *ownAsync[V, E]) layer(value V) (result E, ok bool, issued *pass[V, E]) {
	if s := o.settled; s != nil && aggregateEqual(s.value, value) {
		return s.result, true, nil
	}
	if p := o.pending; p == nil || !aggregateEqual(p.value, value) {
		o.pending = &pass[V, E]{value: value}
		return result, false, o.pending
	}
	return result, false, nil
}

// settle records the result of p if current still equals the value p was
// issued for. Must hold the group's state lock.
func (o *ownAsync[V, E]) settle(p *pass[V, E], current V, result E) bool {
	if o.pending == p {
		o.pending = nil
	}
	if !aggregateEqual(current, p.value) {
		return false
	}
	p.result = result
	o.settled = p
	return true
}

// detachEach runs fn for every member with the group's handler detached, then
// reattaches members that were attached before. Changes fn makes to a member
// are therefore published by the group once, by the caller's refresh.
func detachEach(mu *sync.Mutex, members []*member, handler func(), fn func(m *member) error) error {
	var first error
	for _, m := range members {
		mu.Lock()
		sub := m.sub
		m.sub = Subscription{}
		mu.Unlock()

		if sub.Active() {
			m.node.Unsubscribe(sub)
		}
		if err := fn(m); err != nil && first == nil {
			first = err
		}
		if sub.Active() {
			resub := m.node.Watch(handler)
			mu.Lock()
			m.sub = resub
			mu.Unlock()
		}
	}
	return first
}

func (e env) memberAdded(name string, total int) {
	capitan.Emit(e.ctx, GroupMemberAdded,
		KeyNode.Field(e.name),
		KeyMember.Field(name),
		KeyMembers.Field(total),
	)
}

func (e env) memberRemoved(name string, total int) {
	capitan.Emit(e.ctx, GroupMemberRemoved,
		KeyNode.Field(e.name),
		KeyMember.Field(name),
		KeyMembers.Field(total),
	)
}

func (e env) reset(total int) {
	capitan.Emit(e.ctx, GroupReset,
		KeyNode.Field(e.name),
		KeyMembers.Field(total),
	)
}
