package albertree

import (
	"context"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/stntngo/albertree/blackboard"
)

// Observer receives every node's status transitions across a whole tree,
// the generalization of StatusSubscriber spec.md §6 describes for
// diagnostics and telemetry collaborators (package observe ships a
// logrus sink and a redis pub/sub sink). Observers do not participate in
// status propagation; they must not block the tick thread.
type Observer interface {
	OnStatusChange(ts time.Time, node *TreeNode, prev, next Status)
}

// Tree owns a constructed root node, its root blackboard, and the set of
// subtree blackboards the factory created beneath it, per spec.md §6.
// Once built it is self-sufficient: the factory that built it is no
// longer involved in ticking.
type Tree struct {
	root     Node
	rootBB   *blackboard.Blackboard
	subtrees map[string]*blackboard.Blackboard

	obsMu     sync.Mutex
	observers []Observer

	wakeCh chan struct{}
}

// NewTree wires root — and every TreeNode beneath it — into a fresh
// Tree. Factory.CreateTree is the usual way to obtain one; this
// constructor is exported for tests and for hosts that build a tree by
// hand instead of through a factory.
func NewTree(root Node, rootBB *blackboard.Blackboard, subtrees map[string]*blackboard.Blackboard) *Tree {
	if subtrees == nil {
		subtrees = map[string]*blackboard.Blackboard{}
	}
	t := &Tree{root: root, rootBB: rootBB, subtrees: subtrees, wakeCh: make(chan struct{}, 1)}
	attachTree(root, t)
	return t
}

func attachTree(node Node, t *Tree) {
	if owner, ok := node.(interface{ setTree(*Tree) }); ok {
		owner.setTree(t)
	}
	if parent, ok := node.(ParentNode); ok {
		for _, child := range parent.Children() {
			attachTree(child, t)
		}
	}
}

// RootBlackboard returns the root subtree's blackboard, per spec.md §6.
func (t *Tree) RootBlackboard() *blackboard.Blackboard { return t.rootBB }

// Subtrees returns the subtree blackboards the factory created, keyed by
// registered tree id, with the root blackboard under the root tree's id.
// A tree id entered as a subtree more than once maps only to the
// blackboard of the last instance built.
func (t *Tree) Subtrees() map[string]*blackboard.Blackboard { return t.subtrees }

// AddObserver registers o to receive every node's status transitions for
// the lifetime of the tree.
func (t *Tree) AddObserver(o Observer) {
	t.obsMu.Lock()
	t.observers = append(t.observers, o)
	t.obsMu.Unlock()
}

func (t *Tree) notifyObservers(ts time.Time, node *TreeNode, prev, next Status) {
	t.obsMu.Lock()
	obs := make([]Observer, len(t.observers))
	copy(obs, t.observers)
	t.obsMu.Unlock()

	for _, o := range obs {
		o.OnStatusChange(ts, node, prev, next)
	}
}

// emitWakeUpSignal shortens an in-progress TickWhileRunning sleep. Any
// node may call this; the threaded action does so when its worker
// records a terminal status, and SetOutput does so to accelerate
// reactive decorators waiting on a blackboard change, per spec.md §5.
func (t *Tree) emitWakeUpSignal() {
	select {
	case t.wakeCh <- struct{}{}:
	default:
	}
}

// TickOnce ticks the root exactly once, per spec.md §6. It is the only
// entry point from which Running is a possible, non-error result.
func (t *Tree) TickOnce(ctx context.Context) (Status, error) {
	span, ctx := childSpanFromContext(ctx, "tick")
	defer span.Finish()

	status, err := t.root.Tick(ctx)
	logStatus(span, status, err)
	return status, err
}

// HaltTree halts the root — and transitively every active node beneath
// it — resetting the whole tree to Idle, per spec.md §5.
func (t *Tree) HaltTree() {
	t.root.Halt()
}

// runConfig is this module's descendant of the teacher's
// RunConfiguration: the per-run knobs TickWhileRunning accepts.
type runConfig struct {
	tickTimeout time.Duration
	tracer      opentracing.Tracer
}

func defaultRunConfig() *runConfig {
	return &runConfig{
		tickTimeout: time.Second,
		tracer:      opentracing.NoopTracer{},
	}
}

// RunOption configures one TickWhileRunning call, the descendant of the
// teacher's RunOption.
type RunOption func(*runConfig)

// WithTickTimeout bounds how long a single TickOnce inside
// TickWhileRunning is allowed to run before its context is canceled.
func WithTickTimeout(d time.Duration) RunOption {
	return func(c *runConfig) { c.tickTimeout = d }
}

// WithTracer installs the OpenTracing tracer TickWhileRunning sets as
// the process-global tracer for the duration of the run (mirroring the
// teacher's WithTracer option), so every node's per-tick span in
// ExecuteTick and TickOnce is exported through it.
func WithTracer(tracer opentracing.Tracer) RunOption {
	return func(c *runConfig) { c.tracer = tracer }
}

// TickWhileRunning ticks the root repeatedly until it returns a
// non-Running status or ctx is canceled, sleeping sleepBetween between
// ticks unless woken sooner by emitWakeUpSignal, per spec.md §5/§6.
// Spurious wake-ups are tolerated: the loop always re-ticks the root
// rather than trusting the reason it woke.
func (t *Tree) TickWhileRunning(ctx context.Context, sleepBetween time.Duration, opts ...RunOption) (Status, error) {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	prevTracer := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(cfg.tracer)
	defer opentracing.SetGlobalTracer(prevTracer)

	for {
		tickCtx, cancel := context.WithTimeout(ctx, cfg.tickTimeout)
		status, err := t.TickOnce(tickCtx)
		cancel()

		if err != nil {
			return status, err
		}
		if status != Running {
			return status, nil
		}

		timer := time.NewTimer(sleepBetween)
		select {
		case <-ctx.Done():
			timer.Stop()
			t.HaltTree()
			return Failure, ctx.Err()
		case <-t.wakeCh:
			timer.Stop()
		case <-timer.C:
		}
	}
}
