package observe

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/go-redis/redis/v7"

	"github.com/stntngo/albertree"
)

// RedisObserver publishes every node status transition to a redis
// pub/sub channel as JSON, for a host that wants to fan status changes
// out to other processes (a dashboard, a second instance watching the
// same run). This is a telemetry transport only: per spec.md §6
// ("persisted state: none"), blackboards and trees are never written to
// redis — only this one-way stream of already-happened transitions.
type RedisObserver struct {
	client  *redis.Client
	channel string
}

// StatusEvent is the JSON payload published for one transition.
type StatusEvent struct {
	Time           time.Time `json:"time"`
	Name           string    `json:"name"`
	RegistrationID string    `json:"registration_id"`
	FullPath       string    `json:"full_path"`
	Prev           string    `json:"prev_status"`
	Next           string    `json:"next_status"`
}

// NewRedisObserver builds an Observer that publishes to channel on
// client. Publish errors are swallowed (logged nowhere) rather than
// propagated, matching spec.md §5's "observers... must not block": a
// slow or unreachable redis must never stall the tick thread.
func NewRedisObserver(client *redis.Client, channel string) *RedisObserver {
	return &RedisObserver{client: client, channel: channel}
}

// OnStatusChange implements albertree.Observer.
func (o *RedisObserver) OnStatusChange(ts time.Time, node *albertree.TreeNode, prev, next albertree.Status) {
	payload, err := json.Marshal(StatusEvent{
		Time:           ts,
		Name:           node.Name(),
		RegistrationID: node.RegistrationID(),
		FullPath:       node.FullPath(),
		Prev:           prev.String(),
		Next:           next.String(),
	})
	if err != nil {
		return
	}
	go o.client.WithContext(context.Background()).Publish(o.channel, payload)
}

var _ albertree.Observer = (*RedisObserver)(nil)
