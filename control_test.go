package albertree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stntngo/albertree"
	"github.com/stntngo/albertree/blackboard"
)

func Test_Sequence_AllSucceed(t *testing.T) {
	a := newFake("a", albertree.Success)
	b := newFake("b", albertree.Success)
	seq := albertree.NewSequence(cfg("seq"), a, b)

	status, err := seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
}

func Test_Sequence_FailureHaltsRemainderAndResets(t *testing.T) {
	a := newFake("a", albertree.Success)
	b := newFake("b", albertree.Failure)
	c := newFake("c", albertree.Success)
	seq := albertree.NewSequence(cfg("seq"), a, b, c)

	status, err := seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Failure, status)
	assert.Equal(t, 0, c.ticks, "sequence must not tick children after the failing one")

	// next tick restarts from the first child
	status, err = seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Failure, status)
	assert.Equal(t, 2, a.ticks)
}

func Test_Sequence_ResumesAtRunningChild(t *testing.T) {
	a := newFake("a", albertree.Success)
	b := newFake("b", albertree.Running, albertree.Success)
	c := newFake("c", albertree.Success)
	seq := albertree.NewSequence(cfg("seq"), a, b, c)

	status, err := seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Running, status)
	assert.Equal(t, 1, a.ticks)
	assert.Equal(t, 0, c.ticks)

	status, err = seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 1, a.ticks, "sequence must not re-tick a completed earlier child")
	assert.Equal(t, 1, c.ticks)
}

func Test_Sequence_AllSkippedYieldsSkipped(t *testing.T) {
	a := newFake("a", albertree.Skipped)
	b := newFake("b", albertree.Skipped)
	seq := albertree.NewSequence(cfg("seq"), a, b)

	status, err := seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Skipped, status)
}

func Test_SequenceWithMemory_FailureDoesNotRewind(t *testing.T) {
	a := newFake("a", albertree.Success)
	b := newFake("b", albertree.Failure, albertree.Success)
	seq := albertree.NewSequenceWithMemory(cfg("seq"), a, b)

	status, err := seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Failure, status)

	status, err = seq.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 1, a.ticks, "sequence-with-memory must re-enter at the failing child, not from the start")
}

func Test_ReactiveSequence_EarlierFailureHaltsLaterRunningChild(t *testing.T) {
	condition := newFake("cond", albertree.Success, albertree.Failure)
	action := newFake("action", albertree.Running)
	rs := albertree.NewReactiveSequence(cfg("rs"), condition, action)

	status, err := rs.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Running, status)

	status, err = rs.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Failure, status)
	assert.Equal(t, 1, action.halts, "reactive sequence must halt a later Running child when an earlier one newly fails")
}

func Test_Fallback_FirstSuccessShortCircuits(t *testing.T) {
	a := newFake("a", albertree.Failure)
	b := newFake("b", albertree.Success)
	c := newFake("c", albertree.Success)
	fb := albertree.NewFallback(cfg("fb"), a, b, c)

	status, err := fb.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 0, c.ticks)
}

func Test_Fallback_AllFail(t *testing.T) {
	a := newFake("a", albertree.Failure)
	b := newFake("b", albertree.Failure)
	fb := albertree.NewFallback(cfg("fb"), a, b)

	status, err := fb.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Failure, status)
}

func Test_ReactiveFallback_EarlierSuccessHaltsLaterRunningChild(t *testing.T) {
	condition := newFake("cond", albertree.Failure, albertree.Success)
	action := newFake("action", albertree.Running)
	rf := albertree.NewReactiveFallback(cfg("rf"), condition, action)

	status, err := rf.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Running, status)

	status, err = rf.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 1, action.halts)
}

func Test_Parallel_SuccessThreshold(t *testing.T) {
	a := newFake("a", albertree.Success)
	b := newFake("b", albertree.Running)
	c := newFake("c", albertree.Success)
	p := albertree.NewParallel(cfg("p"), 2, 2, []albertree.Node{a, b, c})

	status, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 1, b.halts, "parallel must halt still-pending children once threshold is reached")
}

func Test_Parallel_NegativeThresholdMeansAllChildren(t *testing.T) {
	a := newFake("a", albertree.Success)
	b := newFake("b", albertree.Running, albertree.Success)
	p := albertree.NewParallel(cfg("p"), -1, -1, []albertree.Node{a, b})

	status, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Running, status, "resolveThreshold(-1,2)=2 requires both children to succeed, and b has not yet")

	status, err = p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
}

func Test_Parallel_FailureWhenSuccessUnreachable(t *testing.T) {
	a := newFake("a", albertree.Failure)
	b := newFake("b", albertree.Running)
	p := albertree.NewParallel(cfg("p"), 2, 2, []albertree.Node{a, b})

	status, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Failure, status, "success threshold of 2 can never be reached once one of two children has failed")
}

func Test_IfThenElse_Branches(t *testing.T) {
	trueBranch := newFake("true", albertree.Success)
	falseBranch := newFake("false", albertree.Success)

	cond := newFake("cond", albertree.Failure)
	ite := albertree.NewIfThenElse(cfg("ite"), cond, trueBranch, falseBranch)

	status, err := ite.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 0, trueBranch.ticks)
	assert.Equal(t, 1, falseBranch.ticks)
}

func Test_WhileDoElse_SwitchesBranchAndHaltsPrevious(t *testing.T) {
	cond := newFake("cond", albertree.Success, albertree.Failure)
	whenTrue := newFake("true", albertree.Running)
	whenFalse := newFake("false", albertree.Success)
	wde := albertree.NewWhileDoElse(cfg("wde"), cond, whenTrue, whenFalse)

	status, err := wde.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Running, status)

	status, err = wde.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 1, whenTrue.halts, "switching from whenTrue to whenFalse must halt the running whenTrue branch")
}

func Test_TryCatch_FailureEntersCatch(t *testing.T) {
	try := newFake("try", albertree.Failure)
	catch := newFake("catch", albertree.Success)
	tc := albertree.NewTryCatch(cfg("tc"), false, try, catch)

	status, err := tc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Failure, status, "TryCatch always concludes Failure once the catch branch has run")
	assert.Equal(t, 1, catch.ticks)
}

func Test_TryCatch_AllTrySucceed(t *testing.T) {
	try1 := newFake("try1", albertree.Success)
	try2 := newFake("try2", albertree.Success)
	catch := newFake("catch", albertree.Success)
	tc := albertree.NewTryCatch(cfg("tc"), false, try1, try2, catch)

	status, err := tc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 0, catch.ticks)
}

func Test_Switch_SelectsMatchingCaseAndHaltsOnChange(t *testing.T) {
	bb := blackboard.New(nil)
	require.NoError(t, blackboard.Set(bb, "color", "red"))

	config := albertree.NodeConfig{
		Name:     "sw",
		FullPath: "sw",
		Blackboard: bb,
		Bindings: map[string]albertree.PortBinding{
			"variable": {Kind: albertree.BoundToBlackboard, Key: "color"},
		},
	}

	caseRed := newFake("red", albertree.Running)
	caseBlue := newFake("blue", albertree.Success)
	def := newFake("default", albertree.Success)

	sw := albertree.NewSwitch(config, []string{"red", "blue"}, caseRed, caseBlue, def)

	status, err := sw.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Running, status)

	require.NoError(t, blackboard.Set(bb, "color", "blue"))
	status, err = sw.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 1, caseRed.halts)
}

func Test_ManualSelector_SelectsChildByPort(t *testing.T) {
	bb := blackboard.New(nil)
	require.NoError(t, blackboard.Set(bb, "pick", 1))

	config := albertree.NodeConfig{
		Name:     "ms",
		FullPath: "ms",
		Blackboard: bb,
		Bindings: map[string]albertree.PortBinding{
			"choice": {Kind: albertree.BoundToBlackboard, Key: "pick"},
		},
	}

	c0 := newFake("c0", albertree.Success)
	c1 := newFake("c1", albertree.Success)

	ms := albertree.NewManualSelector(config, c0, c1)

	status, err := ms.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 0, c0.ticks)
	assert.Equal(t, 1, c1.ticks)
}
