package formz

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// ObjectGroupState is the immutable snapshot published by an ObjectGroup.
type ObjectGroupState struct {
	// Value maps member names to the values of non-skipped members.
	Value map[string]any

	// Err maps member names to member errors, merged with the group's own
	// errors (own keys win), or nil when there are none.
	Err ErrorMap

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
func (s ObjectGroupState) Status() Status {
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

func equalObjectStates(a, b ObjectGroupState) bool {
	return a.Changed == b.Changed &&
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

// ObjectGroupConfig configures an ObjectGroup.
type ObjectGroupConfig struct {
	// Fields is the initial membership. Members are kept in key order.
	Fields map[string]Node

	// Validate checks the aggregated value; its errors are merged over
	// member errors.
	Validate func(values map[string]any) map[string]error

	// ValidateAsync checks the aggregated value asynchronously. It runs only
	// while the aggregate has no error.
	ValidateAsync func(ctx context.Context, values map[string]any) map[string]error

	OnChangeState Handler[ObjectGroupState]

	// Skip excludes the group from a parent group's aggregation.
	Skip bool

	Options
}

// ObjectGroup aggregates named nodes into one state.
type ObjectGroup struct {
	env
	state    *Observable[ObjectGroupState]
	validate func(map[string]any) map[string]error
	async    ownAsync[map[string]any, ErrorMap]

	mu      sync.Mutex
	names   []string
	members map[string]*member
}

// NewObjectGroup creates an ObjectGroup subscribed to every member and
// computes its initial state.
func NewObjectGroup(cfg ObjectGroupConfig) *ObjectGroup {
	g := &ObjectGroup{
		env:      cfg.Options.env(),
		validate: cfg.Validate,
		members:  make(map[string]*member, len(cfg.Fields)),
	}
	if fn := cfg.ValidateAsync; fn != nil {
		g.async.fn = func(ctx context.Context, values map[string]any) ErrorMap {
			return compactErrorMap(fn(ctx, values))
		}
	}

	g.state = NewObservable(ObjectGroupState{Skip: cfg.Skip}, equalObjectStates)
	if cfg.OnChangeState != nil {
		g.state.Subscribe(cfg.OnChangeState)
	}

	g.mu.Lock()
	for _, name := range slices.Sorted(maps.Keys(cfg.Fields)) {
		node := cfg.Fields[name]
		m := &member{name: name, node: node}
		m.sub = node.Watch(g.onMember)
		g.names = append(g.names, name)
		g.members[name] = m
	}
	g.mu.Unlock()

	if !g.Refresh() {
		g.state.Emit()
	}
	return g
}

// Name returns the group's name.
func (g *ObjectGroup) Name() string {
	return g.name
}

// State returns the current snapshot.
func (g *ObjectGroup) State() ObjectGroupState {
	return g.state.State()
}

// Status returns the current snapshot without its concrete types.
func (g *ObjectGroup) Status() Status {
	return g.state.State().Status()
}

// Subscribe registers fn to receive every published snapshot.
func (g *ObjectGroup) Subscribe(fn Handler[ObjectGroupState]) Subscription {
	return g.state.Subscribe(fn)
}

// Watch registers fn to run after every published change.
func (g *ObjectGroup) Watch(fn func()) Subscription {
	return g.state.Subscribe(func(ObjectGroupState) { fn() })
}

// Unsubscribe removes a handler registered with Subscribe or Watch.
func (g *ObjectGroup) Unsubscribe(sub Subscription) bool {
	return g.state.Unsubscribe(sub)
}

// ErrorHistory returns the most recent published errors, oldest first.
func (g *ObjectGroup) ErrorHistory() []error {
	return g.history.all()
}

// Names returns member names in iteration order.
func (g *ObjectGroup) Names() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.names)
}

// Field returns the member registered under name.
func (g *ObjectGroup) Field(name string) (Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.members[name]
	if !ok {
		return nil, false
	}
	return m.node, true
}

// SubField attaches the group's handler to node under name and recomputes
// the group. A new name is appended to the member order; a different node
// already registered under name is detached and replaced.
func (g *ObjectGroup) SubField(name string, node Node) bool {
	g.mu.Lock()
	m, ok := g.members[name]
	var stale Subscription
	var replaced Node
	switch {
	case !ok:
		m = &member{name: name, node: node}
		g.members[name] = m
		g.names = append(g.names, name)
	case m.node != node:
		stale, replaced = m.sub, m.node
		m.node = node
		m.sub = Subscription{}
	}
	if !m.sub.Active() {
		m.sub = node.Watch(g.onMember)
	}
	total := len(g.names)
	g.mu.Unlock()

	if stale.Active() {
		replaced.Unsubscribe(stale)
	}
	if !ok || replaced != nil {
		g.memberAdded(name, total)
	}
	return g.Refresh()
}

// UnsubField detaches the group's handler from the member under name. The
// member stays in the group, but its later changes are not observed until
// SubField is called again.
func (g *ObjectGroup) UnsubField(name string) bool {
	g.mu.Lock()
	m, ok := g.members[name]
	if !ok || !m.sub.Active() {
		g.mu.Unlock()
		return false
	}
	sub := m.sub
	m.sub = Subscription{}
	g.mu.Unlock()

	return m.node.Unsubscribe(sub)
}

// Remove detaches the member under name and drops it, then recomputes.
func (g *ObjectGroup) Remove(name string) bool {
	g.mu.Lock()
	m, ok := g.members[name]
	if !ok {
		g.mu.Unlock()
		return false
	}
	sub := m.sub
	m.sub = Subscription{}
	delete(g.members, name)
	g.names = slices.DeleteFunc(slices.Clone(g.names), func(n string) bool { return n == name })
	total := len(g.names)
	g.mu.Unlock()

	if sub.Active() {
		m.node.Unsubscribe(sub)
	}
	g.memberRemoved(name, total)
	g.Refresh()
	return true
}

// Reset resets every member with the group's handler detached, then
// recomputes once, so the whole reset publishes a single snapshot.
func (g *ObjectGroup) Reset() bool {
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
func (g *ObjectGroup) SetSkip(skip bool) bool {
	return g.state.Transition(func(prev ObjectGroupState) ObjectGroupState {
		prev.Skip = skip
		return prev
	})
}

// Refresh recomputes the group from its members' current states.
func (g *ObjectGroup) Refresh() bool {
	return g.refresh(nil)
}

func (g *ObjectGroup) onMember() {
	g.Refresh()
}

func (g *ObjectGroup) snapshotMembers() []*member {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*member, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, g.members[name])
	}
	return out
}

// view copies the members in order for a recomputation.
func (g *ObjectGroup) view() []member {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]member, 0, len(g.names))
	for _, name := range g.names {
		out = append(out, *g.members[name])
	}
	return out
}

func (g *ObjectGroup) refresh(before func(prev ObjectGroupState)) bool {
	var issued *pass[map[string]any, ErrorMap]
	changed := g.state.Transition(func(prev ObjectGroupState) ObjectGroupState {
		if before != nil {
			before(prev)
		}
		var next ObjectGroupState
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

func (g *ObjectGroup) compute(prev ObjectGroupState) (ObjectGroupState, *pass[map[string]any, ErrorMap]) {
	members := g.view()

	agg := newAggregate()
	value := make(map[string]any, len(members))
	errs := ErrorMap{}
	for _, m := range members {
		st := m.node.Status()
		if !agg.add(st) {
			continue
		}
		value[m.name] = st.Value
		if st.Err != nil {
			errs[m.name] = st.Err
		}
	}
	if g.validate != nil {
		maps.Copy(errs, compactErrorMap(g.validate(value)))
	}

	next := ObjectGroupState{
		Value:      value,
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

	var issued *pass[map[string]any, ErrorMap]
	if g.async.enabled() && len(errs) == 0 {
		result, ok, p := g.async.layer(value)
		issued = p
		if ok {
			maps.Copy(errs, result)
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

func (g *ObjectGroup) run(p *pass[map[string]any, ErrorMap]) {
	p.started = g.env.started()
	go func() {
		result, out := runPass(g.env, p.value, g.async.fn, ErrorMap{GroupKey: ErrValidationTimeout})
		if out == outcomeCanceled {
			g.resolved(false, PhaseInvalid, p.started)
			return
		}
		committed := false
		g.refresh(func(prev ObjectGroupState) {
			committed = g.async.settle(p, prev.Value, result)
		})
		g.resolved(committed, g.Status().Phase(), p.started)
	}()
}

// compactErrorMap drops nil entries and returns nil for an empty result.
func compactErrorMap(errs map[string]error) ErrorMap {
	var out ErrorMap
	for k, err := range errs {
		if err == nil {
			continue
		}
		if out == nil {
			out = make(ErrorMap, len(errs))
		}
		out[k] = err
	}
	return out
}
