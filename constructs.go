package albertree

import "context"

// Noop is a leaf that always succeeds, handy as a placeholder child in
// tests and small example trees.
func Noop(cfg NodeConfig) *SyncActionNode {
	return NewSyncAction(cfg, "Noop", nil, func(_ context.Context, _ *TreeNode) (Status, error) {
		return Success, nil
	})
}

// Label decorates child with an instance name without otherwise
// changing its behavior; every status it returns, including Running,
// passes straight through.
type Label struct{ *DecoratorNode }

// NewLabel builds a Label decorator.
func NewLabel(cfg NodeConfig, child Node) *Label {
	return &Label{NewDecoratorNode(cfg, "Label", nil, child)}
}

func (d *Label) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		return d.child.Tick(ctx)
	})
}

func (d *Label) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// RunUntilSuccess ticks its child repeatedly, turning every Failure into
// Running so the subtree keeps retrying indefinitely until the child
// succeeds, effectively ignoring failures.
type RunUntilSuccess struct{ *DecoratorNode }

// NewRunUntilSuccess builds a RunUntilSuccess decorator.
func NewRunUntilSuccess(cfg NodeConfig, child Node) *RunUntilSuccess {
	return &RunUntilSuccess{NewDecoratorNode(cfg, "RunUntilSuccess", nil, child)}
}

func (d *RunUntilSuccess) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		switch status {
		case Success:
			return Success, nil
		case Failure:
			return Running, nil
		default:
			return status, nil
		}
	})
}

func (d *RunUntilSuccess) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// RunUntilFailure ticks its child repeatedly, turning every Success into
// Running, effectively ignoring successes until the child fails.
type RunUntilFailure struct{ *DecoratorNode }

// NewRunUntilFailure builds a RunUntilFailure decorator.
func NewRunUntilFailure(cfg NodeConfig, child Node) *RunUntilFailure {
	return &RunUntilFailure{NewDecoratorNode(cfg, "RunUntilFailure", nil, child)}
}

func (d *RunUntilFailure) Tick(ctx context.Context) (Status, error) {
	return d.ExecuteTick(ctx, func(ctx context.Context) (Status, error) {
		status, err := d.child.Tick(ctx)
		if err != nil {
			return Failure, err
		}
		switch status {
		case Failure:
			return Failure, nil
		case Success:
			return Running, nil
		default:
			return status, nil
		}
	})
}

func (d *RunUntilFailure) Halt() {
	d.haltChildIfActive()
	d.ForceIdle()
}

// Invert is sugar over Inverter, kept under its original name for
// parity with existing callers.
func Invert(cfg NodeConfig, child Node) *Inverter {
	return NewInverter(cfg, child)
}

// Ternary constructs a classic branching "if predicate then whenTrue
// else whenFalse" subtree. It is sugar over IfThenElse.
func Ternary(cfg NodeConfig, predicate, whenTrue, whenFalse Node) *IfThenElse {
	return NewIfThenElse(cfg, predicate, whenTrue, whenFalse)
}
