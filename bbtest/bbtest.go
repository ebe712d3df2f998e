// Package bbtest collects testify-based assertion helpers for tests of
// trees built on this module: ticking a node through an expected status
// sequence and asserting a typed blackboard value. This repository's own
// test files do not import it; they call testify directly.
package bbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stntngo/albertree"
	"github.com/stntngo/albertree/blackboard"
)

// TickSequence ticks node once per entry of want, asserting the returned
// status matches at each step. It stops at the first mismatch or error.
func TickSequence(t *testing.T, node albertree.Node, want ...albertree.Status) {
	t.Helper()
	for i, expected := range want {
		status, err := node.Tick(context.Background())
		require.NoErrorf(t, err, "tick %d: unexpected error", i)
		require.Equalf(t, expected, status, "tick %d: status mismatch", i)
	}
}

// RequireValue asserts that bb holds want under key, as type T.
func RequireValue[T any](t *testing.T, bb *blackboard.Blackboard, key string, want T) {
	t.Helper()
	got, err := blackboard.Get[T](bb, key)
	require.NoErrorf(t, err, "reading blackboard key %q", key)
	require.Equal(t, want, got)
}

// RequireWriteError asserts that writing value under key fails, and that
// the error is a *blackboard.LogicError if wantLogic is true (otherwise
// a *blackboard.RuntimeError is expected).
func RequireWriteError[T any](t *testing.T, bb *blackboard.Blackboard, key string, value T, wantLogic bool) {
	t.Helper()
	err := blackboard.Set(bb, key, value)
	require.Error(t, err)
	if wantLogic {
		require.IsType(t, &blackboard.LogicError{}, err)
	} else {
		require.IsType(t, &blackboard.RuntimeError{}, err)
	}
}

// NewRootBlackboard is a small convenience for tests that don't care
// about parent-chain remapping.
func NewRootBlackboard() *blackboard.Blackboard {
	return blackboard.New(nil)
}
