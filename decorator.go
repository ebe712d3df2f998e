package albertree

import (
	"context"
	"time"
)

// DecoratorNode is the embeddable base for every single-child node that
// transforms its child's status or retiming its ticks, per spec.md §4.5.
type DecoratorNode struct {
	*TreeNode
	child Node
}

// NewDecoratorNode builds a DecoratorNode base around its single child.
func NewDecoratorNode(cfg NodeConfig, registrationID string, ports []PortDecl, child Node) *DecoratorNode {
	n := &DecoratorNode{TreeNode: NewTreeNode(cfg, registrationID, ports), child: child}
	n.bindPorts()
	return n
}

// Children satisfies ParentNode so generic tooling can walk through a
// decorator without special-casing it.
func (d *DecoratorNode) Children() []Node { return []Node{d.child} }

func (d *DecoratorNode) haltChildIfActive() {
	if d.child.Status().IsActive() {
		d.child.Halt()
	}
}

// Inverter swaps Success and Failure; Running and Skipped pass through
// unchanged, per spec.md §4.5.
type Inverter struct{ *DecoratorNode }

// NewInverter builds an Inverter decorator.
func NewInverter(cfg NodeConfig, child Node) *Inverter {
	return &Inverter{NewDecoratorNode(cfg, "Inverter", nil, child)}
}

func (d *Inverter) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		switch status {
		case Success:
			return Failure, nil
		case Failure:
			return Success, nil
		default:
			return status, nil
		}
	})
}

func (d *Inverter) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// ForceSuccess rewrites any non-Running completion to Success.
type ForceSuccess struct{ *DecoratorNode }

// NewForceSuccess builds a ForceSuccess decorator.
func NewForceSuccess(cfg NodeConfig, child Node) *ForceSuccess {
	return &ForceSuccess{NewDecoratorNode(cfg, "ForceSuccess", nil, child)}
}

func (d *ForceSuccess) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status == Running {
			return Running, nil
		}
		return Success, nil
	})
}

func (d *ForceSuccess) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// ForceFailure rewrites any non-Running completion to Failure.
type ForceFailure struct{ *DecoratorNode }

// NewForceFailure builds a ForceFailure decorator.
func NewForceFailure(cfg NodeConfig, child Node) *ForceFailure {
	return &ForceFailure{NewDecoratorNode(cfg, "ForceFailure", nil, child)}
}

func (d *ForceFailure) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status == Running {
			return Running, nil
		}
		return Failure, nil
	})
}

func (d *ForceFailure) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// Repeat re-runs its child up to N times, succeeding once it has
// completed N Success results; any Failure from the child propagates
// immediately and resets the counter, per spec.md §4.5.
type Repeat struct {
	*DecoratorNode
	target int
	count  int
}

// NewRepeat builds a Repeat decorator that runs its child n times.
func NewRepeat(cfg NodeConfig, n int, child Node) *Repeat {
	return &Repeat{DecoratorNode: NewDecoratorNode(cfg, "Repeat", nil, child), target: n}
}

func (d *Repeat) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		for d.count < d.target {
			status, err := d.child.Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Running:
				return Running, nil
			case Failure:
				d.count = 0
				return Failure, nil
			case Success, Skipped:
				d.count++
				if d.count < d.target {
					return Running, nil
				}
			default:
				return Failure, NewLogicError("child of repeat %s returned %s", d.FullPath(), status)
			}
		}
		d.count = 0
		return Success, nil
	})
}

func (d *Repeat) Halt() {
	d.haltChildIfActive()
	d.count = 0
	d.ForceIdle()
}

// RetryUntilSuccessful re-ticks its child from the start on Failure, up
// to N attempts, propagating a Success immediately and Failure only once
// every attempt has been exhausted, per spec.md §4.5.
type RetryUntilSuccessful struct {
	*DecoratorNode
	maxAttempts int
	attempt     int
}

// NewRetryUntilSuccessful builds a RetryUntilSuccessful decorator.
func NewRetryUntilSuccessful(cfg NodeConfig, maxAttempts int, child Node) *RetryUntilSuccessful {
	return &RetryUntilSuccessful{DecoratorNode: NewDecoratorNode(cfg, "RetryUntilSuccessful", nil, child), maxAttempts: maxAttempts}
}

func (d *RetryUntilSuccessful) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		for d.attempt < d.maxAttempts {
			status, err := d.child.Tick(ctx)
			if err != nil {
				return Failure, err
			}
			switch status {
			case Running:
				return Running, nil
			case Success, Skipped:
				d.attempt = 0
				return status, nil
			case Failure:
				d.attempt++
				if d.attempt < d.maxAttempts {
					return Running, nil
				}
			default:
				return Failure, NewLogicError("child of retry-until-successful %s returned %s", d.FullPath(), status)
			}
		}
		d.attempt = 0
		return Failure, nil
	})
}

func (d *RetryUntilSuccessful) Halt() {
	d.haltChildIfActive()
	d.attempt = 0
	d.ForceIdle()
}

// KeepRunningUntilFailure re-runs its child on every Success, propagating
// Running while it does, and finally propagates the Failure once the
// child produces one, per spec.md §4.5.
type KeepRunningUntilFailure struct{ *DecoratorNode }

// NewKeepRunningUntilFailure builds a KeepRunningUntilFailure decorator.
func NewKeepRunningUntilFailure(cfg NodeConfig, child Node) *KeepRunningUntilFailure {
	return &KeepRunningUntilFailure{NewDecoratorNode(cfg, "KeepRunningUntilFailure", nil, child)}
}

func (d *KeepRunningUntilFailure) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		switch status {
		case Failure:
			return Failure, nil
		case Success, Skipped:
			return Running, nil
		default:
			return status, nil
		}
	})
}

func (d *KeepRunningUntilFailure) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// Timeout fails the subtree if the child is still Running after the
// given duration, halting it in place, per spec.md §4.5. The clock
// starts on the first tick after an Idle -> Running transition.
type Timeout struct {
	*DecoratorNode
	duration time.Duration
	deadline time.Time
	running  bool
}

// NewTimeout builds a Timeout decorator with the given millisecond budget.
func NewTimeout(cfg NodeConfig, ms int, child Node) *Timeout {
	return &Timeout{DecoratorNode: NewDecoratorNode(cfg, "Timeout", nil, child), duration: time.Duration(ms) * time.Millisecond}
}

func (d *Timeout) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if !d.running {
			d.running = true
			d.deadline = time.Now().Add(d.duration)
		}
		if time.Now().After(d.deadline) {
			d.haltChildIfActive()
			d.running = false
			return Failure, nil
		}
		status, err := d.child.Tick(ctx)
		if err != nil {
			d.running = false
			return Failure, err
		}
		if status != Running {
			d.running = false
		}
		return status, nil
	})
}

func (d *Timeout) Halt() {
	d.haltChildIfActive()
	d.running = false
	d.ForceIdle()
}

// Delay holds the child back for the given duration, returning Running
// until it elapses, then ticks the child on every subsequent tick, per
// spec.md §4.5.
type Delay struct {
	*DecoratorNode
	duration time.Duration
	deadline time.Time
	waiting  bool
}

// NewDelay builds a Delay decorator with the given millisecond delay.
func NewDelay(cfg NodeConfig, ms int, child Node) *Delay {
	return &Delay{DecoratorNode: NewDecoratorNode(cfg, "Delay", nil, child), duration: time.Duration(ms) * time.Millisecond}
}

func (d *Delay) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if !d.waiting {
			d.waiting = true
			d.deadline = time.Now().Add(d.duration)
		}
		if time.Now().Before(d.deadline) {
			return Running, nil
		}
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status != Running {
			d.waiting = false
		}
		return status, nil
	})
}

func (d *Delay) Halt() {
	d.haltChildIfActive()
	d.waiting = false
	d.ForceIdle()
}

// RunOnce ticks its child exactly once across the subtree's lifetime,
// caching the resulting status (unless it was Skipped) and returning it
// on every later tick without re-invoking the child, per spec.md §4.5.
type RunOnce struct {
	*DecoratorNode
	done   bool
	result Status
}

// NewRunOnce builds a RunOnce decorator.
func NewRunOnce(cfg NodeConfig, child Node) *RunOnce {
	return &RunOnce{DecoratorNode: NewDecoratorNode(cfg, "RunOnce", nil, child)}
}

func (d *RunOnce) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		if d.done {
			return d.result, nil
		}
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		if status == Running {
			return Running, nil
		}
		if status != Skipped {
			d.done = true
			d.result = status
		}
		return status, nil
	})
}

func (d *RunOnce) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// PreconditionFunc evaluates whether a Precondition decorator's guard
// passes, reading whatever ports it needs off the node's own blackboard.
type PreconditionFunc func(ctx context.Context, node *TreeNode) (bool, error)

// Precondition ticks its child only if the guard passes; otherwise it
// returns elseStatus (typically Failure or Skipped) without ticking the
// child at all, per spec.md §4.5.
type Precondition struct {
	*DecoratorNode
	guard      PreconditionFunc
	elseStatus Status
}

// NewPrecondition builds a Precondition decorator.
func NewPrecondition(cfg NodeConfig, guard PreconditionFunc, elseStatus Status, child Node) *Precondition {
	return &Precondition{DecoratorNode: NewDecoratorNode(cfg, "Precondition", nil, child), guard: guard, elseStatus: elseStatus}
}

func (d *Precondition) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		ok, err := d.guard(ctx, d.TreeNode)
		if err != nil {
			return Failure, err
		}
		if !ok {
			d.haltChildIfActive()
			return d.elseStatus, nil
		}
		return d.child.Tick(ctx)
	})
}

func (d *Precondition) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// SubTree wraps the root of a separately-constructed subtree, forwarding
// ticks and halts through to it unchanged. Its reason to exist at all is
// the blackboard boundary: the factory gives a SubTree's child its own
// child blackboard, wired back to the parent only through the instance's
// declared remaps, per spec.md §4.2/§4.3.
type SubTree struct {
	*DecoratorNode
}

// NewSubTree builds a SubTree decorator around the root node of the
// nested tree. The child must already have been constructed against its
// own child blackboard by the factory.
func NewSubTree(cfg NodeConfig, root Node) *SubTree {
	return &SubTree{DecoratorNode: NewDecoratorNode(cfg, "SubTree", nil, root)}
}

func (d *SubTree) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		return d.child.Tick(ctx)
	})
}

func (d *SubTree) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}
