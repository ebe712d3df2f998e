package albertree_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stntngo/albertree"
	"github.com/stntngo/albertree/blackboard"
)

func Test_Tree_TickOnce_ReturnsRootStatus(t *testing.T) {
	root := newFake("root", albertree.Success)
	tr := albertree.NewTree(root, blackboard.New(nil), nil)

	status, err := tr.TickOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
}

func Test_Tree_HaltTree_HaltsRoot(t *testing.T) {
	root := newFake("root", albertree.Running)
	tr := albertree.NewTree(root, blackboard.New(nil), nil)

	_, err := tr.TickOnce(context.Background())
	require.NoError(t, err)

	tr.HaltTree()
	assert.Equal(t, 1, root.halts)
}

type recordingObserver struct {
	events []albertree.Status
}

func (r *recordingObserver) OnStatusChange(ts time.Time, node *albertree.TreeNode, prev, next albertree.Status) {
	r.events = append(r.events, next)
}

func Test_Tree_AddObserver_ReceivesRealNodeTransitions(t *testing.T) {
	child := albertree.NewSyncAction(cfg("leaf"), "Test", nil, func(ctx context.Context, n *albertree.TreeNode) (albertree.Status, error) {
		return albertree.Success, nil
	})
	seq := albertree.NewSequence(cfg("seq"), child)
	tr := albertree.NewTree(seq, blackboard.New(nil), nil)

	obs := &recordingObserver{}
	tr.AddObserver(obs)

	_, err := tr.TickOnce(context.Background())
	require.NoError(t, err)

	assert.Contains(t, obs.events, albertree.Success)
}

func Test_Tree_TickWhileRunning_ReturnsOnTerminalStatus(t *testing.T) {
	root := newFake("root", albertree.Running, albertree.Running, albertree.Success)
	tr := albertree.NewTree(root, blackboard.New(nil), nil)

	status, err := tr.TickWhileRunning(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, 3, root.ticks)
}

func Test_Tree_TickWhileRunning_HaltsOnContextCancellation(t *testing.T) {
	root := newFake("root", albertree.Running)
	tr := albertree.NewTree(root, blackboard.New(nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	status, err := tr.TickWhileRunning(ctx, time.Second)
	require.Error(t, err)
	assert.Equal(t, albertree.Failure, status)
	assert.Equal(t, 1, root.halts)
}

func Test_Tree_TickWhileRunning_WakeSignalShortensSleep(t *testing.T) {
	worker := albertree.NewThreadedAction(cfg("worker"), "Test", nil, func(ctx context.Context, n *albertree.TreeNode, halt <-chan struct{}) (albertree.Status, error) {
		time.Sleep(10 * time.Millisecond)
		return albertree.Success, nil
	})
	tr := albertree.NewTree(worker, blackboard.New(nil), nil)

	start := time.Now()
	status, err := tr.TickWhileRunning(context.Background(), time.Hour)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Less(t, elapsed, time.Second, "the worker's completion must wake the loop well before the hour-long sleep elapses")
}
