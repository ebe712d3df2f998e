package albertree_test

import (
	"context"

	"github.com/stntngo/albertree"
)

// fakeNode is a scripted Node used across composite/decorator tests: it
// returns one entry of statuses per call to Tick, holding the last entry
// once the script is exhausted, and counts how many times it was ticked
// and halted.
type fakeNode struct {
	name     string
	id       string
	path     string
	statuses []albertree.Status
	idx      int
	ticks    int
	halts    int
	status   albertree.Status
	err      error
}

func newFake(name string, statuses ...albertree.Status) *fakeNode {
	return &fakeNode{name: name, id: "Fake", path: name, statuses: statuses, status: albertree.Idle}
}

func (f *fakeNode) Tick(ctx context.Context) (albertree.Status, error) {
	f.ticks++
	if f.err != nil {
		return albertree.Failure, f.err
	}
	i := f.idx
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	s := f.statuses[i]
	if f.idx < len(f.statuses) {
		f.idx++
	}
	f.status = s
	return s, nil
}

func (f *fakeNode) Halt() {
	f.halts++
	f.status = albertree.Idle
}

func (f *fakeNode) Status() albertree.Status { return f.status }

func (f *fakeNode) Name() string           { return f.name }
func (f *fakeNode) RegistrationID() string { return f.id }
func (f *fakeNode) FullPath() string       { return f.path }

var _ albertree.Node = (*fakeNode)(nil)
var _ albertree.NamedNode = (*fakeNode)(nil)

func cfg(name string) albertree.NodeConfig {
	return albertree.NodeConfig{Name: name, FullPath: name}
}
