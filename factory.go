package albertree

import (
	"fmt"
	"sync"

	"github.com/stntngo/albertree/blackboard"
)

// Builder constructs one node instance from its resolved NodeConfig and
// its already-built children (empty for a leaf), per spec.md §4.7.
type Builder func(cfg NodeConfig, children []Node) (Node, error)

// Manifest is a registered node type's static description: its ports,
// for diagnostics and for a loader to validate a tree description
// against, and a human-readable summary.
type Manifest struct {
	RegistrationID string
	Ports          []PortDecl
	Description    string
}

// NodeSpec is the resolved, loader-produced description of one node
// instance awaiting construction: which registration id to build, its
// instance name, its port bindings, and its children in declaration
// order. Per spec.md §6, a textual format (XML or otherwise) is an
// external collaborator; NodeSpec is the contract such a loader must
// produce for the factory to consume. A NodeSpec whose RegistrationID
// names another registered tree (via RegisterTree), rather than a
// builder, is treated as a subtree entry point: Remaps then describes
// how its ports reach into the parent blackboard.
type NodeSpec struct {
	RegistrationID string
	InstanceName   string
	Bindings       map[string]PortBinding
	Children       []*NodeSpec
	Remaps         []blackboard.PortRemap
}

// Factory maps registration-id strings to builders (plus their
// manifests) and named trees to their resolved root NodeSpec, per
// spec.md §4.7. It is out of the tick path: once CreateTree returns, the
// factory is no longer involved.
type Factory struct {
	mu        sync.Mutex
	builders  map[string]Builder
	manifests map[string]Manifest
	trees     map[string]*NodeSpec
}

// NewFactory builds an empty Factory.
func NewFactory() *Factory {
	return &Factory{
		builders:  map[string]Builder{},
		manifests: map[string]Manifest{},
		trees:     map[string]*NodeSpec{},
	}
}

// RegisterBuilder manually registers a builder and its manifest under
// id, per spec.md §4.7's registerBuilder(id, builder, manifest).
func (f *Factory) RegisterBuilder(id string, builder Builder, manifest Manifest) {
	manifest.RegistrationID = id

	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[id] = builder
	f.manifests[id] = manifest
}

// RegisterNodeType is the Go analogue of spec.md §4.7's
// registerNodeType<T>(id): T is the concrete node type build produces,
// inferred by the compiler rather than discovered by calling a static
// method on T through reflection — Go has no such static-method
// protocol, so the caller supplies the type's declared ports directly.
func RegisterNodeType[T Node](f *Factory, id string, ports []PortDecl, description string, build func(cfg NodeConfig, children []Node) (T, error)) {
	f.RegisterBuilder(id, func(cfg NodeConfig, children []Node) (Node, error) {
		return build(cfg, children)
	}, Manifest{Ports: ports, Description: description})
}

// Manifests returns every registered manifest, keyed by registration id.
func (f *Factory) Manifests() map[string]Manifest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Manifest, len(f.manifests))
	for k, v := range f.manifests {
		out[k] = v
	}
	return out
}

// RegisterTree associates a resolved root NodeSpec with a tree id, so it
// can be entered as a subtree by another tree's SubTree node, or built
// directly as CreateTree's root.
func (f *Factory) RegisterTree(id string, root *NodeSpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees[id] = root
}

func (f *Factory) builderFor(id string) (Builder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.builders[id]
	return b, ok
}

func (f *Factory) treeFor(id string) (*NodeSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spec, ok := f.trees[id]
	return spec, ok
}

// CreateTree resolves rootID (registered via RegisterTree) against
// rootBlackboard: it walks the NodeSpec graph, builds every node through
// its registered builder, assigns UIDs and full paths in construction
// order, and — for every NodeSpec naming another registered tree —
// enters it as a subtree with its own chained blackboard and port
// remappings, per spec.md §4.7.
func (f *Factory) CreateTree(rootID string, rootBlackboard *blackboard.Blackboard) (*Tree, error) {
	spec, ok := f.treeFor(rootID)
	if !ok {
		return nil, NewRuntimeError("factory: no tree registered under id %q", rootID)
	}

	b := &buildState{factory: f, subtrees: map[string]*blackboard.Blackboard{rootID: rootBlackboard}}
	root, err := b.build(spec, rootBlackboard, rootID)
	if err != nil {
		return nil, err
	}

	return NewTree(root, rootBlackboard, b.subtrees), nil
}

type buildState struct {
	factory  *Factory
	subtrees map[string]*blackboard.Blackboard
	nextUID  uint16
}

func (b *buildState) uid() uint16 {
	u := b.nextUID
	b.nextUID++
	return u
}

func (b *buildState) build(spec *NodeSpec, bb *blackboard.Blackboard, fullPath string) (Node, error) {
	if builder, ok := b.factory.builderFor(spec.RegistrationID); ok {
		children := make([]Node, 0, len(spec.Children))
		for i, childSpec := range spec.Children {
			childPath := fmt.Sprintf("%s/%d", fullPath, i)
			child, err := b.build(childSpec, bb, childPath)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}

		cfg := NodeConfig{
			Blackboard: bb,
			Bindings:   spec.Bindings,
			UID:        b.uid(),
			Name:       spec.InstanceName,
			FullPath:   fullPath,
		}
		return builder(cfg, children)
	}

	subSpec, ok := b.factory.treeFor(spec.RegistrationID)
	if !ok {
		return nil, NewRuntimeError("factory: %q is neither a registered builder nor a registered tree", spec.RegistrationID)
	}

	childBB := blackboard.New(bb)
	if err := childBB.ApplyRemap(spec.Remaps); err != nil {
		return nil, err
	}
	b.subtrees[spec.RegistrationID] = childBB

	subRoot, err := b.build(subSpec, childBB, fullPath+"/"+spec.RegistrationID)
	if err != nil {
		return nil, err
	}

	cfg := NodeConfig{
		Blackboard: bb,
		Bindings:   spec.Bindings,
		UID:        b.uid(),
		Name:       spec.InstanceName,
		FullPath:   fullPath,
	}
	return NewSubTree(cfg, subRoot), nil
}
