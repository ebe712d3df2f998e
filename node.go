// Package albertree is the growth of the teacher library littlealbert
// into a complete, BehaviorTree.CPP-shaped tick engine: a typed
// blackboard (package blackboard), a port/type model, exception-safe
// leaf execution with a node-path backtrace, and the full control and
// decorator family from spec.md.
package albertree

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/stntngo/albertree/blackboard"
)

// Node is the minimum interface every control, decorator, and leaf
// implements — the Go analogue of BehaviorTree.CPP's TreeNode virtual
// tick()/halt() pair.
type Node interface {
	Tick(ctx context.Context) (Status, error)
	Halt()
	Status() Status
}

// NamedNode is implemented by every Node built on TreeNode; TreePrint and
// diagnostics use it instead of a type switch per concrete node kind.
type NamedNode interface {
	Name() string
	RegistrationID() string
	FullPath() string
}

// ParentNode is implemented by control and decorator nodes so generic
// tooling (TreePrint, halting, subtree wiring) can walk the tree without
// knowing about every concrete composite.
type ParentNode interface {
	Children() []Node
}

// StatusSubscriber observes status transitions, per spec.md §6
// ("subscribeToStatusChange"). Implementations must not block — they run
// synchronously on the tick thread.
type StatusSubscriber func(ts time.Time, node *TreeNode, prev, next Status)

// PreconditionScript is the external collaborator spec.md §1 calls out as
// "scripting/expression language for pre-/post-conditions" — explicitly
// out of scope for this module's core. The interface is all executeTick
// needs; no expression-language implementation ships here.
type PreconditionScript interface {
	EvaluatePre(ctx context.Context, node *TreeNode) (skip bool, status Status, err error)
}

// PostconditionScript is evaluated after a node's own tick() returns and
// may override the returned status.
type PostconditionScript interface {
	EvaluatePost(ctx context.Context, node *TreeNode, result Status, resultErr error) (Status, error)
}

// PortBindingKind distinguishes a port bound to a blackboard key from one
// fed an immediate literal value, per spec.md §4.3.
type PortBindingKind int

const (
	// BoundToBlackboard reads/writes through a blackboard entry.
	BoundToBlackboard PortBindingKind = iota
	// BoundToLiteral parses a fixed string on demand via convertFromString.
	BoundToLiteral
)

// PortBinding is how one declared port of one node instance is actually
// wired, resolved by the factory (or, for a subtree's own ports, by the
// remapping rules of blackboard.PortRemap) at tree-construction time.
type PortBinding struct {
	Kind    PortBindingKind
	Key     string // blackboard key, when Kind == BoundToBlackboard
	Literal string // literal text, when Kind == BoundToLiteral
}

// ParsePortValue implements the conventional "{name}" vs. literal-string
// syntax an XML (or any other) tree-description loader would use to
// produce a PortBinding — spec.md §6 places this decision with the
// loader, not the core; this helper exists so a loader has somewhere
// idiomatic to delegate to.
func ParsePortValue(raw string) PortBinding {
	if len(raw) >= 2 && raw[0] == '{' && raw[len(raw)-1] == '}' {
		inner := raw[1 : len(raw)-1]
		return PortBinding{Kind: BoundToBlackboard, Key: inner}
	}
	return PortBinding{Kind: BoundToLiteral, Literal: raw}
}

// NodeConfig carries everything the factory resolves for one node
// instance ahead of its first tick: the subtree blackboard it belongs
// to, its port bindings, its assigned uid, and its full path prefix —
// exactly what spec.md §6 requires a loader to supply.
type NodeConfig struct {
	Blackboard     *blackboard.Blackboard
	Bindings       map[string]PortBinding
	UID            uint16
	Name           string
	RegistrationID string
	FullPath       string
}

// TreeNode is the embeddable base every control, decorator, and leaf node
// builds on. It owns the attributes spec.md §3 calls essential: uid,
// name, registration id, full path, the owning blackboard, the port map,
// current/previous status, and the status-change subscriber set.
type TreeNode struct {
	uid            uint16
	name           string
	registrationID string
	fullPath       string
	bb             *blackboard.Blackboard
	ports          []PortDecl
	bindings       map[string]PortBinding
	tree           *Tree

	mu         sync.Mutex
	status     Status
	prevStatus Status

	subMu       sync.Mutex
	subscribers map[int]StatusSubscriber
	nextSubID   int

	Pre  PreconditionScript
	Post PostconditionScript
}

// NewTreeNode builds a TreeNode from its NodeConfig and declared ports.
// Concrete node constructors (Sequence, Inverter, SyncAction, ...) call
// this to initialize their embedded base.
func NewTreeNode(cfg NodeConfig, registrationID string, ports []PortDecl) *TreeNode {
	return &TreeNode{
		uid:            cfg.UID,
		name:           cfg.Name,
		registrationID: registrationID,
		fullPath:       cfg.FullPath,
		bb:             cfg.Blackboard,
		ports:          ports,
		bindings:       cfg.Bindings,
		status:         Idle,
		prevStatus:     Idle,
		subscribers:    make(map[int]StatusSubscriber),
	}
}

func (n *TreeNode) UID() uint16             { return n.uid }
func (n *TreeNode) Name() string            { return n.name }
func (n *TreeNode) RegistrationID() string  { return n.registrationID }
func (n *TreeNode) FullPath() string        { return n.fullPath }
func (n *TreeNode) Blackboard() *blackboard.Blackboard { return n.bb }
func (n *TreeNode) Ports() []PortDecl       { return n.ports }

// Status returns the node's current status. It may be read concurrently;
// it is mutated only by the tick driver on the main tick thread, per
// spec.md §3.
func (n *TreeNode) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

func (n *TreeNode) setStatus(s Status) {
	n.mu.Lock()
	n.prevStatus = n.status
	n.status = s
	n.mu.Unlock()
}

// ForceIdle resets status to Idle without running any halt logic on a
// child; used by control/decorator Halt() implementations after they
// have halted whatever was active.
func (n *TreeNode) ForceIdle() {
	n.mu.Lock()
	prev := n.status
	n.status = Idle
	n.mu.Unlock()
	if prev != Idle {
		n.notifySubscribers(prev, Idle)
	}
}

// SubscribeToStatusChange registers fn to be invoked synchronously,
// in-order, whenever this node's status changes. It returns a function
// that cancels the subscription.
func (n *TreeNode) SubscribeToStatusChange(fn StatusSubscriber) (cancel func()) {
	n.subMu.Lock()
	id := n.nextSubID
	n.nextSubID++
	n.subscribers[id] = fn
	n.subMu.Unlock()

	return func() {
		n.subMu.Lock()
		delete(n.subscribers, id)
		n.subMu.Unlock()
	}
}

func (n *TreeNode) notifySubscribers(prev, next Status) {
	n.subMu.Lock()
	fns := make([]StatusSubscriber, 0, len(n.subscribers))
	for _, fn := range n.subscribers {
		fns = append(fns, fn)
	}
	n.subMu.Unlock()

	ts := time.Now()
	for _, fn := range fns {
		fn(ts, n, prev, next)
	}
	if n.tree != nil {
		n.tree.notifyObservers(ts, n, prev, next)
	}
}

// wake notifies the owning tree's wake signal, used by SetOutput and by
// the asynchronous leaf variants when a worker completes.
func (n *TreeNode) wake() {
	if n.tree != nil {
		n.tree.emitWakeUpSignal()
	}
}

// setTree attaches the owning Tree once, at construction time, so status
// changes and wake-ups can reach it; called by NewTree as it walks the
// freshly-built node graph.
func (n *TreeNode) setTree(t *Tree) {
	n.tree = t
}

// wrapError attaches this node's backtrace entry to err, unless err is
// already a *NodeExecutionError — which means some descendant node (a
// child composite, or the leaf that actually threw) has already done
// so. Per spec.md §7, the host observes exactly one NodeExecutionError,
// whose backtrace names the node that actually failed; re-wrapping on
// the way back up through every ancestor's ExecuteTick call would bury
// that entry under one per composite on the path instead.
func (n *TreeNode) wrapError(err error) error {
	var existing *NodeExecutionError
	if errors.As(err, &existing) {
		return err
	}
	return &NodeExecutionError{
		Backtrace: TickBacktraceEntry{
			InstanceName:   n.name,
			FullPath:       n.fullPath,
			RegistrationID: n.registrationID,
		},
		Err: err,
	}
}

// ExecuteTick is the base wrapper spec.md §4.1 describes around every
// node's own tick(): it evaluates any precondition script, records the
// previous status, invokes tick, converts a panic or returned error into
// a NodeExecutionError carrying this node's backtrace entry, notifies
// status-change subscribers on a real transition, and evaluates any
// postcondition script. IDLE is never a legal return from tick.
func (n *TreeNode) ExecuteTick(ctx context.Context, tick func(context.Context) (Status, error)) (status Status, err error) {
	if n.Pre != nil {
		skip, forced, perr := n.Pre.EvaluatePre(ctx, n)
		if perr != nil {
			return Failure, n.wrapError(perr)
		}
		if skip {
			before := n.Status()
			n.setStatus(forced)
			if forced != before {
				n.notifySubscribers(before, forced)
			}
			return forced, nil
		}
	}

	prev := n.Status()

	span, ctx := childSpanFromContext(ctx, n.registrationID+":"+n.fullPath)
	defer span.Finish()

	defer func() {
		if r := recover(); r != nil {
			err = n.wrapError(fmt.Errorf("panic: %v", r))
			status = Failure
			n.setStatus(Failure)
			logStatus(span, status, err)
			if Failure != prev {
				n.notifySubscribers(prev, Failure)
			}
		}
	}()

	status, err = tick(ctx)
	if err != nil {
		wrapped := n.wrapError(err)
		n.setStatus(Failure)
		logStatus(span, Failure, wrapped)
		if Failure != prev {
			n.notifySubscribers(prev, Failure)
		}
		return Failure, wrapped
	}
	if status == Idle {
		wrapped := n.wrapError(NewLogicError("tick() on %s returned Idle, which is never a legal result", n.fullPath))
		n.setStatus(Failure)
		logStatus(span, Failure, wrapped)
		if Failure != prev {
			n.notifySubscribers(prev, Failure)
		}
		return Failure, wrapped
	}

	if n.Post != nil {
		overridden, perr := n.Post.EvaluatePost(ctx, n, status, nil)
		if perr != nil {
			return Failure, n.wrapError(perr)
		}
		status = overridden
	}

	n.setStatus(status)
	logStatus(span, status, nil)
	if status != prev {
		n.notifySubscribers(prev, status)
	}

	return status, nil
}

// PortDecl is one entry of a node type's static providedPorts(): name,
// direction, expected type (or, when Generic is set, the generic
// sentinel), default value, and description, per spec.md §4.3.
type PortDecl struct {
	Name        string
	Direction   blackboard.Direction
	Type        reflect.Type
	Default     string
	Description string
	Generic     bool
}

// PortOption configures an optional attribute of a port declaration.
type PortOption func(*PortDecl)

// WithDefault sets the port's default literal value.
func WithDefault(v string) PortOption {
	return func(p *PortDecl) { p.Default = v }
}

// WithDescription sets the port's documentation string.
func WithDescription(d string) PortOption {
	return func(p *PortDecl) { p.Description = d }
}

func newPort[T any](name string, dir blackboard.Direction, opts []PortOption) PortDecl {
	var zero T
	p := PortDecl{Name: name, Direction: dir, Type: reflect.TypeOf(zero)}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// InputPort declares a read-only typed port.
func InputPort[T any](name string, opts ...PortOption) PortDecl {
	return newPort[T](name, blackboard.Input, opts)
}

// OutputPort declares a write-only typed port.
func OutputPort[T any](name string, opts ...PortOption) PortDecl {
	return newPort[T](name, blackboard.Output, opts)
}

// BidirectionalPort declares a port a node both reads and writes.
func BidirectionalPort[T any](name string, opts ...PortOption) PortDecl {
	return newPort[T](name, blackboard.InOut, opts)
}

// AnyPort declares a port with the generic "any type allowed" sentinel
// of spec.md §4.2 rule 2 — no write to its bound entry is ever locked.
func AnyPort(name string, dir blackboard.Direction, opts ...PortOption) PortDecl {
	p := PortDecl{Name: name, Direction: dir, Generic: true}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// portInfo converts a PortDecl into the blackboard.PortInfo its bound
// entry should carry.
func (p PortDecl) portInfo() *blackboard.PortInfo {
	return &blackboard.PortInfo{
		Name:        p.Name,
		Direction:   p.Direction,
		Type:        p.Type,
		Default:     p.Default,
		Description: p.Description,
		Generic:     p.Generic,
	}
}

// bindPorts ensures every declared port with a blackboard binding has its
// backing entry created (with the declared type locked in, or marked
// generic), ahead of the node's first tick. Ports bound to a literal
// value need no entry at all.
func (n *TreeNode) bindPorts() {
	if n.bb == nil {
		return
	}
	for _, p := range n.ports {
		b, ok := n.bindings[p.Name]
		if !ok || b.Kind != BoundToBlackboard {
			continue
		}
		n.bb.CreateEntry(b.Key, p.portInfo())
	}
}

// GetInput fetches the value bound to the named input (or inout) port.
// A blackboard-bound port goes through blackboard.Get; a literal-bound
// port is parsed on demand via the type's registered convertFromString.
func GetInput[T any](n *TreeNode, name string) (T, error) {
	var zero T
	b, ok := n.bindings[name]
	if !ok {
		return zero, NewRuntimeError("port %q on %s has no binding", name, n.fullPath)
	}
	switch b.Kind {
	case BoundToBlackboard:
		return blackboard.Get[T](n.bb, b.Key)
	case BoundToLiteral:
		v, err := convertLiteral[T](b.Literal)
		return v, err
	default:
		return zero, NewLogicError("port %q on %s has an unknown binding kind", name, n.fullPath)
	}
}

// SetOutput writes value through the named output (or inout) port and
// wakes any asynchronous node waiting on blackboard changes, per
// spec.md §4.3.
func SetOutput[T any](n *TreeNode, name string, value T) error {
	b, ok := n.bindings[name]
	if !ok {
		return NewRuntimeError("port %q on %s has no binding", name, n.fullPath)
	}
	if b.Kind != BoundToBlackboard {
		return NewLogicError("port %q on %s is bound to a literal and cannot be written", name, n.fullPath)
	}
	if err := blackboard.Set(n.bb, b.Key, value); err != nil {
		return err
	}
	if n.tree != nil {
		n.tree.emitWakeUpSignal()
	}
	return nil
}

func convertLiteral[T any](raw string) (T, error) {
	return blackboard.ConvertLiteral[T](raw)
}
