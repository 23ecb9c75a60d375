package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/nats-io/nats.go"
)

// Dispatcher republishes a trigger for a task onto a per-task subject so a
// sharded pool of consumers elsewhere can pick up the next Process call,
// the way the teacher's nats_engine.go shards workflow runs across
// subjects. It is entirely optional: Process never requires one, and every
// method here is nil-receiver-safe, mirroring the teacher's own
// `if e == nil || e.js == nil { return nil }` guard on every NATSEngine
// method.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID, workflowID string, trig Trigger) error
}

// NATSDispatcher publishes to subject "loom.shard.<n>.task.<id>.trigger",
// where n = hash(taskID) % ShardCount. A consumer pool can subscribe to a
// subset of shard subjects to bound how many task streams it handles
// concurrently. The in-process lock map in orchestrator.go is not sharded:
// it holds one mutex per task id.
type NATSDispatcher struct {
	conn       *nats.Conn
	shardCount int
}

// NewNATSDispatcher connects to url. shardCount must be >= 1; callers
// typically pass config.AppConfig.ShardCount. A nil *NATSDispatcher (e.g.
// when url is empty and the caller chooses not to construct one) is a
// valid, inert Dispatcher.
func NewNATSDispatcher(url string, shardCount int) (*NATSDispatcher, error) {
	if shardCount < 1 {
		shardCount = 1
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("dispatch: connect to nats: %w", err)
	}
	return &NATSDispatcher{conn: conn, shardCount: shardCount}, nil
}

type dispatchPayload struct {
	TaskID     string  `json:"task_id"`
	WorkflowID string  `json:"workflow_id"`
	Trigger    Trigger `json:"trigger"`
}

func (d *NATSDispatcher) shardOf(taskID string) int {
	h := fnv.New32a()
	h.Write([]byte(taskID))
	return int(h.Sum32() % uint32(d.shardCount))
}

func (d *NATSDispatcher) Dispatch(ctx context.Context, taskID, workflowID string, trig Trigger) error {
	if d == nil || d.conn == nil {
		return nil
	}
	subject := fmt.Sprintf("loom.shard.%d.task.%s.trigger", d.shardOf(taskID), taskID)
	data, err := json.Marshal(dispatchPayload{TaskID: taskID, WorkflowID: workflowID, Trigger: trig})
	if err != nil {
		return fmt.Errorf("dispatch: marshal trigger: %w", err)
	}
	return d.conn.Publish(subject, data)
}

func (d *NATSDispatcher) Close() {
	if d == nil || d.conn == nil {
		return
	}
	d.conn.Close()
}
