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

func noopBuilder(cfg albertree.NodeConfig, children []albertree.Node) (*albertree.SyncActionNode, error) {
	return albertree.Noop(cfg), nil
}

func sequenceBuilder(cfg albertree.NodeConfig, children []albertree.Node) (*albertree.Sequence, error) {
	return albertree.NewSequence(cfg, children...), nil
}

func newTestFactory() *albertree.Factory {
	f := albertree.NewFactory()
	albertree.RegisterNodeType(f, "Noop", nil, "always succeeds", noopBuilder)
	albertree.RegisterNodeType(f, "Sequence", nil, "ticks children in order", sequenceBuilder)
	return f
}

// transitionObserver records the name and full path of every node whose
// status changes, in the order the changes happen.
type transitionObserver struct {
	names []string
	paths []string
}

func (o *transitionObserver) OnStatusChange(_ time.Time, node *albertree.TreeNode, _, _ albertree.Status) {
	o.names = append(o.names, node.Name())
	o.paths = append(o.paths, node.FullPath())
}

func Test_Factory_CreateTree_BuildsLeafAndAssignsFullPath(t *testing.T) {
	f := newTestFactory()
	f.RegisterTree("main", &albertree.NodeSpec{RegistrationID: "Noop", InstanceName: "leaf"})

	tree, err := f.CreateTree("main", blackboard.New(nil))
	require.NoError(t, err)
	obs := &transitionObserver{}
	tree.AddObserver(obs)

	status, err := tree.TickOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, []string{"main"}, obs.paths)
}

func Test_Factory_CreateTree_BuildsChildrenInOrder(t *testing.T) {
	f := newTestFactory()
	f.RegisterTree("main", &albertree.NodeSpec{
		RegistrationID: "Sequence",
		InstanceName:   "root",
		Children: []*albertree.NodeSpec{
			{RegistrationID: "Noop", InstanceName: "a"},
			{RegistrationID: "Noop", InstanceName: "b"},
		},
	})

	tree, err := f.CreateTree("main", blackboard.New(nil))
	require.NoError(t, err)
	obs := &transitionObserver{}
	tree.AddObserver(obs)

	status, err := tree.TickOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)
	assert.Equal(t, []string{"a", "b", "root"}, obs.names)
	assert.Equal(t, []string{"main/0", "main/1", "main"}, obs.paths)
}

func Test_Factory_CreateTree_UnregisteredRootIsError(t *testing.T) {
	f := newTestFactory()
	_, err := f.CreateTree("missing", blackboard.New(nil))
	require.Error(t, err)
}

func Test_Factory_CreateTree_EntersSubtreeWithRemappedBlackboard(t *testing.T) {
	f := newTestFactory()

	f.RegisterTree("sub", &albertree.NodeSpec{RegistrationID: "Noop", InstanceName: "subleaf"})
	f.RegisterTree("main", &albertree.NodeSpec{
		RegistrationID: "Sequence",
		InstanceName:   "root",
		Children: []*albertree.NodeSpec{
			{
				RegistrationID: "sub",
				InstanceName:   "entry",
				Remaps: []blackboard.PortRemap{
					{Internal: "child_key", Kind: blackboard.RemapByName, External: "parent_key"},
				},
			},
		},
	})

	rootBB := blackboard.New(nil)
	require.NoError(t, blackboard.Set(rootBB, "parent_key", 7))

	tree, err := f.CreateTree("main", rootBB)
	require.NoError(t, err)

	status, err := tree.TickOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, albertree.Success, status)

	subBB, ok := tree.Subtrees()["sub"]
	require.True(t, ok, "subtree blackboard must be recorded under its registration id")

	got, err := blackboard.Get[int](subBB, "child_key")
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func Test_Factory_Manifests_ReturnsRegisteredDescriptions(t *testing.T) {
	f := newTestFactory()
	manifests := f.Manifests()
	require.Contains(t, manifests, "Noop")
	assert.Equal(t, "Noop", manifests["Noop"].RegistrationID)
}
