// Package observe collects the Observer implementations the core tick
// engine never imports: diagnostics and telemetry collaborators that
// subscribe to every node's status transitions across a whole tree, per
// spec.md §6's "observer interface... invoked synchronously from the
// tick thread." None of these participate in status propagation.
package observe

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stntngo/albertree"
)

// LogrusObserver logs every node status transition as a structured
// logrus entry. It is the ambient-logging collaborator for a tree: the
// teacher's own packages reach for logrus whenever something worth
// recording happens on a hot path, and a status transition is exactly
// that for a behavior tree.
type LogrusObserver struct {
	log *logrus.Entry
}

// NewLogrusObserver builds an Observer that logs through log, or through
// logrus.StandardLogger() if log is nil.
func NewLogrusObserver(log *logrus.Logger) *LogrusObserver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogrusObserver{log: logrus.NewEntry(log)}
}

// OnStatusChange implements albertree.Observer.
func (o *LogrusObserver) OnStatusChange(ts time.Time, node *albertree.TreeNode, prev, next albertree.Status) {
	o.log.WithFields(logrus.Fields{
		"time":            ts,
		"node":            node.Name(),
		"registration_id": node.RegistrationID(),
		"full_path":       node.FullPath(),
		"prev_status":     prev.String(),
		"next_status":     next.String(),
	}).Debug("behavior tree node status change")
}

var _ albertree.Observer = (*LogrusObserver)(nil)
