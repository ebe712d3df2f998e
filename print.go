package albertree

import (
	"fmt"

	tp "github.com/xlab/treeprint"
)

// TreePrint renders the subtree rooted at root the way the `tree`
// command renders a directory, one branch per composite/decorator and
// one leaf per action/condition, labeled by registration id and
// instance name and annotated with current status.
func TreePrint(root Node) string {
	tree := tp.New()

	p(root, tree)
	return tree.String()
}

func p(node Node, tree tp.Tree) {
	label := "Unknown Node"
	if named, ok := node.(NamedNode); ok {
		label = named.RegistrationID()
		if named.Name() != "" && named.Name() != named.RegistrationID() {
			label += fmt.Sprintf(": %s", named.Name())
		}
	}
	label += fmt.Sprintf(" [%s]", node.Status())

	if parent, ok := node.(ParentNode); ok {
		branch := tree.AddBranch(label)

		for _, child := range parent.Children() {
			p(child, branch)
		}

		return
	}

	tree.AddNode(label)
}
