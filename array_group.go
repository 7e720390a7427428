package formz

import (
	"context"
	"slices"
	"strconv"
	"sync"
)

// ArrayGroupState is the immutable snapshot published by an ArrayGroup.
type ArrayGroupState struct {
	// Value holds the values of non-skipped members in member order.
	Value []any

	// Err holds member errors in member order followed by the group's own
	// errors, or nil when there are none.
	Err ErrorList

	// Length is the number of non-skipped members.
	Length int

	Changed    bool
	Empty      bool
	Complete   bool
	Validating bool
	Valid      bool
	Focused    bool
	Touched    bool
	Disabled   bool
	Skip       bool
}

// Status returns the type-erased view of the snapshot.
func (s ArrayGroupState) Status() Status {
	return Status{
		Value:      s.Value,
		Err:        s.Err.orNil(),
		Changed:    s.Changed,
		Empty:      s.Empty,
		Complete:   s.Complete,
		Validating: s.Validating,
		Valid:      s.Valid,
		Focused:    s.Focused,
		Touched:    s.Touched,
		Disabled:   s.Disabled,
		Skip:       s.Skip,
	}
}

func equalArrayStates(a, b ArrayGroupState) bool {
	return a.Length == b.Length &&
		a.Changed == b.Changed &&
		a.Empty == b.Empty &&
		a.Complete == b.Complete &&
		a.Validating == b.Validating &&
		a.Valid == b.Valid &&
		a.Focused == b.Focused &&
		a.Touched == b.Touched &&
		a.Disabled == b.Disabled &&
		a.Skip == b.Skip &&
		sameErr(a.Err.orNil(), b.Err.orNil()) &&
		aggregateEqual(a.Value, b.Value)
}

// ArrayGroupConfig configures an ArrayGroup.
type ArrayGroupConfig struct {
	// Fields is the initial membership, in order.
	Fields []Node

	// Validate checks the aggregated value; its errors are appended after
	// member errors.
	Validate func(values []any) []error

	// ValidateAsync checks the aggregated value asynchronously. It runs only
	// while the aggregate has no error.
	ValidateAsync func(ctx context.Context, values []any) []error

	OnChangeState Handler[ArrayGroupState]

	// Skip excludes the group from a parent group's aggregation.
	Skip bool

	Options
}

// ArrayGroup aggregates an ordered collection of nodes into one state.
type ArrayGroup struct {
	env
	state    *Observable[ArrayGroupState]
	validate func([]any) []error
	async    ownAsync[[]any, ErrorList]

	mu      sync.Mutex
	members []*member
}

// NewArrayGroup creates an ArrayGroup subscribed to every member and computes
// its initial state.
func NewArrayGroup(cfg ArrayGroupConfig) *ArrayGroup {
	g := &ArrayGroup{
		env:      cfg.Options.env(),
		validate: cfg.Validate,
	}
	if fn := cfg.ValidateAsync; fn != nil {
		g.async.fn = func(ctx context.Context, values []any) ErrorList {
			return compactErrors(fn(ctx, values))
		}
	}

	g.state = NewObservable(ArrayGroupState{Skip: cfg.Skip}, equalArrayStates)
	if cfg.OnChangeState != nil {
		g.state.Subscribe(cfg.OnChangeState)
	}

	g.mu.Lock()
	for i, node := range cfg.Fields {
		m := &member{name: strconv.Itoa(i), node: node}
		m.sub = node.Watch(g.onMember)
		g.members = append(g.members, m)
	}
	g.mu.Unlock()

	if !g.Refresh() {
		g.state.Emit()
	}
	return g
}

// Name returns the group's name.
func (g *ArrayGroup) Name() string {
	return g.name
}

// State returns the current snapshot.
func (g *ArrayGroup) State() ArrayGroupState {
	return g.state.State()
}

// Status returns the current snapshot without its concrete types.
func (g *ArrayGroup) Status() Status {
	return g.state.State().Status()
}

// Subscribe registers fn to receive every published snapshot.
func (g *ArrayGroup) Subscribe(fn Handler[ArrayGroupState]) Subscription {
	return g.state.Subscribe(fn)
}

// Watch registers fn to run after every published change.
func (g *ArrayGroup) Watch(fn func()) Subscription {
	return g.state.Subscribe(func(ArrayGroupState) { fn() })
}

// Unsubscribe removes a handler registered with Subscribe or Watch.
func (g *ArrayGroup) Unsubscribe(sub Subscription) bool {
	return g.state.Unsubscribe(sub)
}

// ErrorHistory returns the most recent published errors, oldest first.
func (g *ArrayGroup) ErrorHistory() []error {
	return g.history.all()
}

// Members returns the group's members in order, attached or not.
func (g *ArrayGroup) Members() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Node, len(g.members))
	for i, m := range g.members {
		out[i] = m.node
	}
	return out
}

// Len returns the number of members, skipped ones included.
func (g *ArrayGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// SubField attaches the group's handler to node, appending node as a member
// if it is not one yet, and recomputes the group.
func (g *ArrayGroup) SubField(node Node) bool {
	g.mu.Lock()
	m := g.find(node)
	added := m == nil
	if added {
		m = &member{name: strconv.Itoa(len(g.members)), node: node}
		g.members = append(g.members, m)
	}
	if !m.sub.Active() {
		m.sub = node.Watch(g.onMember)
	}
	total := len(g.members)
	g.mu.Unlock()

	if added {
		g.memberAdded(m.name, total)
	}
	return g.Refresh()
}

// UnsubField detaches the group's handler from node. The node stays a member,
// but its later changes are not observed until SubField is called again.
func (g *ArrayGroup) UnsubField(node Node) bool {
	g.mu.Lock()
	m := g.find(node)
	if m == nil || !m.sub.Active() {
		g.mu.Unlock()
		return false
	}
	sub := m.sub
	m.sub = Subscription{}
	g.mu.Unlock()

	return node.Unsubscribe(sub)
}

// Remove detaches node and drops it from the group, then recomputes.
func (g *ArrayGroup) Remove(node Node) bool {
	g.mu.Lock()
	i := slices.IndexFunc(g.members, func(m *member) bool { return m.node == node })
	if i < 0 {
		g.mu.Unlock()
		return false
	}
	m := g.members[i]
	sub := m.sub
	m.sub = Subscription{}
	g.members = slices.Delete(slices.Clone(g.members), i, i+1)
	total := len(g.members)
	g.mu.Unlock()

	if sub.Active() {
		node.Unsubscribe(sub)
	}
	g.memberRemoved(m.name, total)
	g.Refresh()
	return true
}

// Reset resets every member with the group's handler detached, then
// recomputes once, so the whole reset publishes a single snapshot.
func (g *ArrayGroup) Reset() bool {
	members := g.snapshotMembers()
	_ = detachEach(&g.mu, members, g.onMember, func(m *member) error {
		m.node.Reset()
		return nil
	})
	g.reset(len(members))
	return g.Refresh()
}

// SetSkip sets the group's own skip flag. It does not affect the group's own
// aggregation, only its parent's.
func (g *ArrayGroup) SetSkip(skip bool) bool {
	return g.state.Transition(func(prev ArrayGroupState) ArrayGroupState {
		prev.Skip = skip
		return prev
	})
}

// Refresh recomputes the group from its members' current states.
func (g *ArrayGroup) Refresh() bool {
	return g.refresh(nil)
}

func (g *ArrayGroup) onMember() {
	g.Refresh()
}

func (g *ArrayGroup) find(node Node) *member {
	for _, m := range g.members {
		if m.node == node {
			return m
		}
	}
	return nil
}

func (g *ArrayGroup) snapshotMembers() []*member {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.members)
}

// view copies the members in order for a recomputation.
func (g *ArrayGroup) view() []member {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]member, len(g.members))
	for i, m := range g.members {
		out[i] = *m
	}
	return out
}

// refresh recomputes and publishes the group state. before runs under the
// state lock ahead of the recomputation.
func (g *ArrayGroup) refresh(before func(prev ArrayGroupState)) bool {
	var issued *pass[[]any, ErrorList]
	changed := g.state.Transition(func(prev ArrayGroupState) ArrayGroupState {
		if before != nil {
			before(prev)
		}
		var next ArrayGroupState
		next, issued = g.compute(prev)
		if !sameErr(prev.Err.orNil(), next.Err.orNil()) {
			g.history.record(next.Err.orNil())
		}
		return next
	})
	if issued != nil {
		g.run(issued)
	}
	return changed
}

func (g *ArrayGroup) compute(prev ArrayGroupState) (ArrayGroupState, *pass[[]any, ErrorList]) {
	members := g.view()

	agg := newAggregate()
	value := make([]any, 0, len(members))
	var errs ErrorList
	for _, m := range members {
		st := m.node.Status()
		if !agg.add(st) {
			continue
		}
		value = append(value, st.Value)
		if st.Err != nil {
			errs = append(errs, st.Err)
		}
	}
	if g.validate != nil {
		errs = append(errs, compactErrors(g.validate(value))...)
	}

	next := ArrayGroupState{
		Value:      value,
		Length:     agg.length,
		Changed:    agg.changed,
		Empty:      agg.empty,
		Complete:   agg.complete,
		Validating: agg.validating,
		Valid:      agg.valid && len(errs) == 0,
		Focused:    agg.focused,
		Touched:    agg.touched,
		Disabled:   agg.disabled,
		Skip:       prev.Skip,
	}

	var issued *pass[[]any, ErrorList]
	if g.async.enabled() && len(errs) == 0 {
		result, ok, p := g.async.layer(value)
		issued = p
		if ok {
			errs = result
			next.Valid = next.Valid && len(result) == 0
		} else {
			next.Validating = true
			next.Valid = false
		}
	}
	if len(errs) > 0 {
		next.Err = errs
	}
	return next, issued
}

func (g *ArrayGroup) run(p *pass[[]any, ErrorList]) {
	p.started = g.env.started()
	go func() {
		result, out := runPass(g.env, p.value, g.async.fn, ErrorList{ErrValidationTimeout})
		if out == outcomeCanceled {
			g.resolved(false, PhaseInvalid, p.started)
			return
		}
		committed := false
		g.refresh(func(prev ArrayGroupState) {
			committed = g.async.settle(p, prev.Value, result)
		})
		g.resolved(committed, g.Status().Phase(), p.started)
	}()
}

// compactErrors drops nil entries and returns nil for an empty result.
func compactErrors(errs []error) ErrorList {
	var out ErrorList
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
