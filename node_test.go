package albertree_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stntngo/albertree"
)

func Test_ExecuteTick_WrapsReturnedErrorWithBacktrace(t *testing.T) {
	node := albertree.NewTreeNode(albertree.NodeConfig{Name: "n", FullPath: "root/n"}, "Test", nil)

	want := errors.New("data unavailable")
	_, err := node.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		return albertree.Failure, want
	})

	require.Error(t, err)
	var execErr *albertree.NodeExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "root/n", execErr.Backtrace.FullPath)
	assert.ErrorIs(t, err, want)
}

func Test_ExecuteTick_NestedAncestorsDoNotRewrapChildError(t *testing.T) {
	child := albertree.NewTreeNode(albertree.NodeConfig{Name: "child", FullPath: "root/parent/child"}, "Test", nil)
	parent := albertree.NewTreeNode(albertree.NodeConfig{Name: "parent", FullPath: "root/parent"}, "Test", nil)

	leafErr := errors.New("disk unavailable")

	// A composite's tick() returns its failing child's error straight
	// through, already wrapped by the child's own ExecuteTick — the
	// shape every control node in control.go uses.
	_, childErr := child.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		return albertree.Failure, leafErr
	})
	require.Error(t, childErr)

	_, err := parent.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		return albertree.Failure, childErr
	})

	require.Error(t, err)
	var execErr *albertree.NodeExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "root/parent/child", execErr.Backtrace.FullPath, "backtrace must name the throwing child, not an ancestor")
	assert.ErrorIs(t, err, leafErr)

	// There must be exactly one NodeExecutionError in the chain: unwrap
	// past it and confirm the next layer is the bare leaf error, not
	// another NodeExecutionError contributed by parent.
	assert.Equal(t, leafErr, errors.Unwrap(execErr))
}

func Test_ExecuteTick_RejectsIdleAsLogicError(t *testing.T) {
	node := albertree.NewTreeNode(albertree.NodeConfig{Name: "n", FullPath: "n"}, "Test", nil)

	status, err := node.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		return albertree.Idle, nil
	})

	require.Error(t, err)
	assert.Equal(t, albertree.Failure, status)

	var execErr *albertree.NodeExecutionError
	require.ErrorAs(t, err, &execErr)
	require.IsType(t, &albertree.LogicError{}, execErr.Unwrap())
}

func Test_ExecuteTick_RecoversPanic(t *testing.T) {
	node := albertree.NewTreeNode(albertree.NodeConfig{Name: "n", FullPath: "n"}, "Test", nil)

	status, err := node.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		panic("kaboom")
	})

	require.Error(t, err)
	assert.Equal(t, albertree.Failure, status)
}

func Test_ExecuteTick_NotifiesSubscribersOnlyOnRealTransition(t *testing.T) {
	node := albertree.NewTreeNode(albertree.NodeConfig{Name: "n", FullPath: "n"}, "Test", nil)

	var notifications int
	cancel := node.SubscribeToStatusChange(func(_ time.Time, _ *albertree.TreeNode, prev, next albertree.Status) {
		notifications++
	})
	defer cancel()

	_, err := node.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		return albertree.Success, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, notifications, "Idle -> Success is a real transition")

	_, err = node.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		return albertree.Success, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, notifications, "Success -> Success again must not renotify")
}

func Test_ExecuteTick_CancelUnsubscribesObserver(t *testing.T) {
	node := albertree.NewTreeNode(albertree.NodeConfig{Name: "n", FullPath: "n"}, "Test", nil)

	var notifications int
	cancel := node.SubscribeToStatusChange(func(_ time.Time, _ *albertree.TreeNode, prev, next albertree.Status) {
		notifications++
	})
	cancel()

	_, err := node.ExecuteTick(context.Background(), func(ctx context.Context) (albertree.Status, error) {
		return albertree.Success, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, notifications)
}
