package albertree

import "context"

// ControlNode is the embeddable base for every composite that owns an
// ordered, fixed-after-construction list of children, per spec.md §3.
type ControlNode struct {
	*TreeNode
	children []Node
}

// NewControlNode builds a ControlNode base from its config and children.
func NewControlNode(cfg NodeConfig, registrationID string, ports []PortDecl, children []Node) *ControlNode {
	n := &ControlNode{TreeNode: NewTreeNode(cfg, registrationID, ports), children: children}
	n.bindPorts()
	return n
}

// Children returns the node's children in declaration order.
func (c *ControlNode) Children() []Node { return c.children }

// haltActive halts children[from:] that are currently Running.
func (c *ControlNode) haltActive(from int) {
	for i := from; i < len(c.children); i++ {
		if c.children[i].Status().IsActive() {
			c.children[i].Halt()
		}
	}
}

// Sequence ticks children left-to-right, resuming at the last Running
// child, halting the remainder and resetting to the first child on
// Failure, and succeeding once every child has completed with at least
// one Success — or returning Skipped if every child was Skipped, per
// spec.md §4.4.
type Sequence struct {
	*ControlNode
	index         int
	anyNonSkipped bool
}

// NewSequence builds a Sequence control node.
func NewSequence(cfg NodeConfig, children ...Node) *Sequence {
	return &Sequence{ControlNode: NewControlNode(cfg, "Sequence", nil, children)}
}

func (s *Sequence) Tick(ctx context.Context) (Status, error) {
	return s.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if s.index == 0 {
			s.anyNonSkipped = false
		}
		for s.index < len(s.children) {
			status, err := s.children[s.index].Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Running:
				return Running, nil
			case Failure:
				s.haltActive(s.index)
				s.index = 0
				return Failure, nil
			case Success:
				s.anyNonSkipped = true
				s.index++
			case Skipped:
				s.index++
			default:
				return Failure, NewLogicError("child %d of sequence %s returned %s", s.index, s.FullPath(), status)
			}
		}
		s.index = 0
		if s.anyNonSkipped {
			return Success, nil
		}
		return Skipped, nil
	})
}

func (s *Sequence) Halt() {
	s.haltActive(s.index)
	s.index = 0
	s.ForceIdle()
}

// SequenceWithMemory is a Sequence that does not reset its index on
// Failure: the next tick re-enters at the failing child, per spec.md §4.4.
type SequenceWithMemory struct {
	*ControlNode
	index         int
	anyNonSkipped bool
}

// NewSequenceWithMemory builds a SequenceWithMemory control node.
func NewSequenceWithMemory(cfg NodeConfig, children ...Node) *SequenceWithMemory {
	return &SequenceWithMemory{ControlNode: NewControlNode(cfg, "SequenceWithMemory", nil, children)}
}

func (s *SequenceWithMemory) Tick(ctx context.Context) (Status, error) {
	return s.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if s.index == 0 {
			s.anyNonSkipped = false
		}
		for s.index < len(s.children) {
			status, err := s.children[s.index].Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Running:
				return Running, nil
			case Failure:
				s.haltActive(s.index + 1)
				return Failure, nil
			case Success:
				s.anyNonSkipped = true
				s.index++
			case Skipped:
				s.index++
			default:
				return Failure, NewLogicError("child %d of sequence-with-memory %s returned %s", s.index, s.FullPath(), status)
			}
		}
		s.index = 0
		if s.anyNonSkipped {
			return Success, nil
		}
		return Skipped, nil
	})
}

func (s *SequenceWithMemory) Halt() {
	s.haltActive(s.index)
	s.index = 0
	s.ForceIdle()
}

// ReactiveSequence re-ticks every prior non-running child on every tick;
// an earlier Failure halts whatever was running later and fails
// immediately, per spec.md §4.4.
type ReactiveSequence struct {
	*ControlNode
}

// NewReactiveSequence builds a ReactiveSequence control node.
func NewReactiveSequence(cfg NodeConfig, children ...Node) *ReactiveSequence {
	return &ReactiveSequence{ControlNode: NewControlNode(cfg, "ReactiveSequence", nil, children)}
}

func (r *ReactiveSequence) Tick(ctx context.Context) (Status, error) {
	return r.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		anyNonSkipped := false
		for i, child := range r.children {
			status, err := child.Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Failure:
				r.haltActive(i + 1)
				return Failure, nil
			case Running:
				r.haltActive(i + 1)
				return Running, nil
			case Success:
				anyNonSkipped = true
			case Skipped:
			default:
				return Failure, NewLogicError("child %d of reactive sequence %s returned %s", i, r.FullPath(), status)
			}
		}
		if anyNonSkipped {
			return Success, nil
		}
		return Skipped, nil
	})
}

func (r *ReactiveSequence) Halt() {
	r.haltActive(0)
	r.ForceIdle()
}

// Fallback mirrors Sequence on the other status axis: Failure advances,
// Success short-circuits, per spec.md §4.4.
type Fallback struct {
	*ControlNode
	index         int
	anyNonSkipped bool
}

// NewFallback builds a Fallback control node.
func NewFallback(cfg NodeConfig, children ...Node) *Fallback {
	return &Fallback{ControlNode: NewControlNode(cfg, "Fallback", nil, children)}
}

func (f *Fallback) Tick(ctx context.Context) (Status, error) {
	return f.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if f.index == 0 {
			f.anyNonSkipped = false
		}
		for f.index < len(f.children) {
			status, err := f.children[f.index].Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Running:
				return Running, nil
			case Success:
				f.haltActive(f.index)
				f.index = 0
				return Success, nil
			case Failure:
				f.anyNonSkipped = true
				f.index++
			case Skipped:
				f.index++
			default:
				return Failure, NewLogicError("child %d of fallback %s returned %s", f.index, f.FullPath(), status)
			}
		}
		f.index = 0
		if f.anyNonSkipped {
			return Failure, nil
		}
		return Skipped, nil
	})
}

func (f *Fallback) Halt() {
	f.haltActive(f.index)
	f.index = 0
	f.ForceIdle()
}

// ReactiveFallback mirrors ReactiveSequence on the other status axis.
type ReactiveFallback struct {
	*ControlNode
}

// NewReactiveFallback builds a ReactiveFallback control node.
func NewReactiveFallback(cfg NodeConfig, children ...Node) *ReactiveFallback {
	return &ReactiveFallback{ControlNode: NewControlNode(cfg, "ReactiveFallback", nil, children)}
}

func (r *ReactiveFallback) Tick(ctx context.Context) (Status, error) {
	return r.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		anyNonSkipped := false
		for i, child := range r.children {
			status, err := child.Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Success:
				r.haltActive(i + 1)
				return Success, nil
			case Running:
				r.haltActive(i + 1)
				return Running, nil
			case Failure:
				anyNonSkipped = true
			case Skipped:
			default:
				return Failure, NewLogicError("child %d of reactive fallback %s returned %s", i, r.FullPath(), status)
			}
		}
		if anyNonSkipped {
			return Failure, nil
		}
		return Skipped, nil
	})
}

func (r *ReactiveFallback) Halt() {
	r.haltActive(0)
	r.ForceIdle()
}

// resolveThreshold implements the signed-threshold convention of
// spec.md §4.4: a negative threshold counts from the end of the child
// list (-1 means "all children", -2 means "all but one", and so on).
func resolveThreshold(raw, n int) int {
	if raw < 0 {
		return n + raw + 1
	}
	return raw
}

// Parallel ticks every not-yet-completed child on every tick, succeeding
// once the success threshold of children have returned Success and
// failing as soon as the failure threshold is reached or the remaining
// children can no longer reach the success threshold, per spec.md §4.4.
//
// A child is "non-counting" if it is explicitly marked so via
// WithNonCountingChildren, or — preserved, not endorsed, per spec.md §9 —
// if its registration id is exactly "Log".
type Parallel struct {
	*ControlNode
	successThreshold int
	failureThreshold int
	nonCounting      []bool
	succeeded        map[int]bool
	failed           map[int]bool
}

// ParallelOption configures a Parallel node at construction time.
type ParallelOption func(*Parallel)

// WithNonCountingChildren marks the children at the given indices as not
// contributing to either threshold — the clean replacement spec.md §9
// recommends for the original's string-match on registration id "Log".
func WithNonCountingChildren(indices ...int) ParallelOption {
	return func(p *Parallel) {
		for _, i := range indices {
			if i >= 0 && i < len(p.nonCounting) {
				p.nonCounting[i] = true
			}
		}
	}
}

// NewParallel builds a Parallel control node with the given success and
// failure thresholds (either may be negative per spec.md §4.4).
func NewParallel(cfg NodeConfig, successThreshold, failureThreshold int, children []Node, opts ...ParallelOption) *Parallel {
	p := &Parallel{
		ControlNode:      NewControlNode(cfg, "Parallel", nil, children),
		successThreshold: successThreshold,
		failureThreshold: failureThreshold,
		nonCounting:      make([]bool, len(children)),
		succeeded:        map[int]bool{},
		failed:           map[int]bool{},
	}
	for i, c := range children {
		if nn, ok := c.(NamedNode); ok && nn.RegistrationID() == "Log" {
			p.nonCounting[i] = true
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parallel) countable() int {
	n := 0
	for _, nc := range p.nonCounting {
		if !nc {
			n++
		}
	}
	return n
}

func (p *Parallel) countFlags(set map[int]bool) int {
	n := 0
	for i := range set {
		if !p.nonCounting[i] {
			n++
		}
	}
	return n
}

func (p *Parallel) Tick(ctx context.Context) (Status, error) {
	return p.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		for i, child := range p.children {
			if p.succeeded[i] || p.failed[i] {
				continue
			}
			status, err := child.Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Success:
				p.succeeded[i] = true
			case Failure:
				p.failed[i] = true
			case Skipped:
				// A skipped child produced no real result; it is marked
				// failed so the threshold arithmetic below still
				// terminates, matching "not a real child result" from
				// spec.md §3 without ever counting as a success.
				p.failed[i] = true
			case Running:
			default:
				return Failure, NewLogicError("child %d of parallel %s returned %s", i, p.FullPath(), status)
			}
		}

		countable := p.countable()
		sThresh := resolveThreshold(p.successThreshold, countable)
		fThresh := resolveThreshold(p.failureThreshold, countable)
		succCount := p.countFlags(p.succeeded)
		failCount := p.countFlags(p.failed)
		possibleSuccess := countable - failCount

		if succCount >= sThresh {
			p.haltPending()
			p.reset()
			return Success, nil
		}
		if failCount >= fThresh || possibleSuccess < sThresh {
			p.haltPending()
			p.reset()
			return Failure, nil
		}
		return Running, nil
	})
}

func (p *Parallel) haltPending() {
	for i, child := range p.children {
		if !p.succeeded[i] && !p.failed[i] && child.Status().IsActive() {
			child.Halt()
		}
	}
}

func (p *Parallel) reset() {
	p.succeeded = map[int]bool{}
	p.failed = map[int]bool{}
}

func (p *Parallel) Halt() {
	p.haltPending()
	p.reset()
	p.ForceIdle()
}

// IfThenElse ticks a 3-child [condition, whenTrue, whenFalse] (whenFalse
// optional) subtree, per spec.md §4.4. While the selected branch is
// Running, the condition is not re-ticked.
type IfThenElse struct {
	*ControlNode
	branch int // 0 = unselected, 1 = whenTrue active, 2 = whenFalse active
}

// NewIfThenElse builds an IfThenElse control node.
func NewIfThenElse(cfg NodeConfig, children ...Node) *IfThenElse {
	return &IfThenElse{ControlNode: NewControlNode(cfg, "IfThenElse", nil, children)}
}

func (n *IfThenElse) Tick(ctx context.Context) (Status, error) {
	return n.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if len(n.children) < 2 || len(n.children) > 3 {
			return Failure, NewRuntimeError("IfThenElse %s requires 2 or 3 children, got %d", n.FullPath(), len(n.children))
		}
		if n.branch == 0 {
			status, err := n.children[0].Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Running:
				return Running, nil
			case Success:
				n.branch = 1
			case Failure, Skipped:
				if len(n.children) == 3 {
					n.branch = 2
				} else {
					return Failure, nil
				}
			default:
				return Failure, NewLogicError("condition child of IfThenElse %s returned %s", n.FullPath(), status)
			}
		}
		status, err := n.children[n.branch].Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status != Running {
			n.branch = 0
		}
		return status, nil
	})
}

func (n *IfThenElse) Halt() {
	n.haltActive(0)
	n.branch = 0
	n.ForceIdle()
}

// WhileDoElse is like IfThenElse but re-ticks the condition every tick;
// switching branches halts the previously running one, per spec.md §4.4.
type WhileDoElse struct {
	*ControlNode
	activeBranch int // 0 = none, 1 = whenTrue, 2 = whenFalse
}

// NewWhileDoElse builds a WhileDoElse control node.
func NewWhileDoElse(cfg NodeConfig, children ...Node) *WhileDoElse {
	return &WhileDoElse{ControlNode: NewControlNode(cfg, "WhileDoElse", nil, children)}
}

func (n *WhileDoElse) Tick(ctx context.Context) (Status, error) {
	return n.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if len(n.children) < 2 || len(n.children) > 3 {
			return Failure, NewRuntimeError("WhileDoElse %s requires 2 or 3 children, got %d", n.FullPath(), len(n.children))
		}
		condStatus, err := n.children[0].Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if condStatus == Running {
			return Failure, NewLogicError("condition child of WhileDoElse %s returned Running, which is not allowed", n.FullPath())
		}

		var target int
		if condStatus == Success {
			target = 1
		} else if len(n.children) == 3 {
			target = 2
		} else {
			n.haltBranch()
			n.activeBranch = 0
			return Failure, nil
		}

		if n.activeBranch != 0 && n.activeBranch != target {
			n.haltBranch()
		}
		n.activeBranch = target

		status, err := n.children[target].Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status != Running {
			n.activeBranch = 0
		}
		return status, nil
	})
}

func (n *WhileDoElse) haltBranch() {
	if n.activeBranch != 0 && n.children[n.activeBranch].Status().IsActive() {
		n.children[n.activeBranch].Halt()
	}
}

func (n *WhileDoElse) Halt() {
	n.haltBranch()
	n.activeBranch = 0
	n.ForceIdle()
}

// TryCatch runs children[0:N-1] as a try-sequence and children[N-1] as
// the catch, per spec.md §4.4. Any try-child Failure halts the remaining
// try-children and ticks the catch-child, returning Failure once it
// completes. If CatchOnHalt is set, a halt that arrives while the
// try-block is Running also invokes the catch-child synchronously.
type TryCatch struct {
	*ControlNode
	catchOnHalt bool
	index       int
	inCatch     bool
}

// NewTryCatch builds a TryCatch control node. children must have at
// least two entries: the last is the catch-child.
func NewTryCatch(cfg NodeConfig, catchOnHalt bool, children ...Node) *TryCatch {
	return &TryCatch{ControlNode: NewControlNode(cfg, "TryCatch", nil, children), catchOnHalt: catchOnHalt}
}

func (t *TryCatch) tryChildren() []Node { return t.children[:len(t.children)-1] }
func (t *TryCatch) catchChild() Node    { return t.children[len(t.children)-1] }

func (t *TryCatch) Tick(ctx context.Context) (Status, error) {
	return t.ExecuteTick(ctx, t.tickInner)
}

func (t *TryCatch) tickInner(ctx context.Context) (Status, error) {
	if len(t.children) < 2 {
		return Failure, NewRuntimeError("TryCatch %s requires at least two children", t.FullPath())
	}
	tryChildren := t.tryChildren()

	if t.inCatch {
		return t.tickCatch(ctx)
	}

	for t.index < len(tryChildren) {
		status, err := tryChildren[t.index].Tick(ctx)
		if err != nil {
			return Failure, err
		}
		switch status {
		case Running:
			return Running, nil
		case Failure:
			t.haltTryFrom(t.index + 1)
			t.inCatch = true
			return t.tickCatch(ctx)
		case Success, Skipped:
			t.index++
		default:
			return Failure, NewLogicError("try child %d of %s returned %s", t.index, t.FullPath(), status)
		}
	}
	t.index = 0
	return Success, nil
}

func (t *TryCatch) tickCatch(ctx context.Context) (Status, error) {
	status, err := t.catchChild().Tick(ctx)
	if err != nil {
		return Failure, err
	}
	if status == Running {
		return Running, nil
	}
	t.inCatch = false
	t.index = 0
	return Failure, nil
}

func (t *TryCatch) haltTryFrom(from int) {
	tryChildren := t.tryChildren()
	for i := from; i < len(tryChildren); i++ {
		if tryChildren[i].Status().IsActive() {
			tryChildren[i].Halt()
		}
	}
}

func (t *TryCatch) Halt() {
	tryChildren := t.tryChildren()
	catchChild := t.catchChild()

	if t.inCatch {
		if catchChild.Status().IsActive() {
			catchChild.Halt()
		}
	} else {
		tryWasRunning := t.index < len(tryChildren) && tryChildren[t.index].Status().IsActive()
		if tryWasRunning {
			tryChildren[t.index].Halt()
		}
		if t.catchOnHalt && tryWasRunning {
			_, _ = catchChild.Tick(context.Background())
			if catchChild.Status().IsActive() {
				catchChild.Halt()
			}
		}
	}

	t.inCatch = false
	t.index = 0
	t.ForceIdle()
}

// Switch reads a string variable from its "variable" input port, ticks
// the child whose declared case matches, or the last (default) child if
// none match, per spec.md §4.4. This is the runtime-sized Go analogue of
// the C++ Switch<N> template. If the variable changes while a branch is
// Running, the old branch is halted and the new one entered.
type Switch struct {
	*ControlNode
	cases  []string
	active int // -1 = none
}

// NewSwitch builds a Switch control node. len(children) must equal
// len(cases)+1 (the trailing child is the default).
func NewSwitch(cfg NodeConfig, cases []string, children ...Node) *Switch {
	ports := []PortDecl{InputPort[string]("variable")}
	return &Switch{
		ControlNode: NewControlNode(cfg, "Switch", ports, children),
		cases:       cases,
		active:      -1,
	}
}

func (s *Switch) Tick(ctx context.Context) (Status, error) {
	return s.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if len(s.children) != len(s.cases)+1 {
			return Failure, NewRuntimeError("Switch %s has %d children for %d cases", s.FullPath(), len(s.children), len(s.cases))
		}
		value, err := GetInput[string](s.TreeNode, "variable")
		if err != nil {
			return Failure, err
		}
		target := len(s.children) - 1
		for i, c := range s.cases {
			if c == value {
				target = i
				break
			}
		}
		if s.active != -1 && s.active != target && s.children[s.active].Status().IsActive() {
			s.children[s.active].Halt()
		}
		s.active = target
		status, err := s.children[target].Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status != Running {
			s.active = -1
		}
		return status, nil
	})
}

func (s *Switch) Halt() {
	if s.active != -1 && s.children[s.active].Status().IsActive() {
		s.children[s.active].Halt()
	}
	s.active = -1
	s.ForceIdle()
}

// ManualSelector is, per spec.md §4.4, out of the deterministic path in
// the source library: it blocks the tick loop and presents a terminal UI
// for a human to pick a child. This module has no terminal dependency in
// its pack to ground a real interactive implementation on (see
// SPEC_FULL.md), so it is realized here as a deterministic stand-in that
// reads the forced choice from a bound "choice" input port instead of
// blocking on a TTY — retained for tooling parity, not interactivity.
type ManualSelector struct {
	*ControlNode
	active int
}

// NewManualSelector builds a ManualSelector control node.
func NewManualSelector(cfg NodeConfig, children ...Node) *ManualSelector {
	ports := []PortDecl{InputPort[int]("choice")}
	return &ManualSelector{
		ControlNode: NewControlNode(cfg, "ManualSelector", ports, children),
		active:      -1,
	}
}

func (m *ManualSelector) Tick(ctx context.Context) (Status, error) {
	return m.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		choice, err := GetInput[int](m.TreeNode, "choice")
		if err != nil {
			return Failure, err
		}
		if choice < 0 || choice >= len(m.children) {
			return Failure, NewRuntimeError("ManualSelector %s: choice %d out of range", m.FullPath(), choice)
		}
		if m.active != -1 && m.active != choice && m.children[m.active].Status().IsActive() {
			m.children[m.active].Halt()
		}
		m.active = choice
		status, err := m.children[choice].Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status != Running {
			m.active = -1
		}
		return status, nil
	})
}

func (m *ManualSelector) Halt() {
	if m.active != -1 && m.children[m.active].Status().IsActive() {
		m.children[m.active].Halt()
	}
	m.active = -1
	m.ForceIdle()
}
