// Package snapshot publishes the synchronized task population to NATS JetStream KV.
package snapshot

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/xxh3"

	"github.com/arloliu/taskchain/types"
)

// CurrentKey is the KV key holding the latest snapshot.
const CurrentKey = "snapshot.current"

// Snapshot is the published form of the task and user population.
type Snapshot struct {
	Version     int64            `json:"version"`
	Fingerprint uint64           `json:"fingerprint"`
	QueryTime   time.Time        `json:"queryTime"`
	PublishedAt time.Time        `json:"publishedAt"`
	Tasks       []types.TaskData `json:"tasks"`
	Users       []types.UserData `json:"users"`
}

// Publisher writes snapshots to a NATS KV bucket.
//
// Versions stay monotonic across restarts: DiscoverHighestVersion picks up the
// version of the snapshot already stored in the bucket. A snapshot whose
// content fingerprint equals the last published one is not written again.
type Publisher struct {
	kv jetstream.KeyValue

	mu             sync.Mutex
	currentVersion int64
	fingerprint    uint64

	logger  types.Logger
	metrics types.SyncMetrics
}

// NewPublisher creates a new snapshot publisher.
//
// Parameters:
//   - kv: NATS KV bucket for snapshots
//   - logger: Logger for publishing events
//   - metrics: Metrics collector for snapshot publications
//
// Returns:
//   - *Publisher: A new publisher instance
func NewPublisher(kv jetstream.KeyValue, logger types.Logger, metrics types.SyncMetrics) *Publisher {
	return &Publisher{
		kv:      kv,
		logger:  logger,
		metrics: metrics,
	}
}

// DiscoverHighestVersion reads the stored snapshot and continues its version sequence.
//
// An empty bucket leaves the version at zero.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Nil on success, error on KV access failure
func (p *Publisher) DiscoverHighestVersion(ctx context.Context) error {
	snap, err := p.Load(ctx)
	if errors.Is(err, types.ErrSnapshotNotFound) {
		p.logger.Debug("no existing snapshot found")
		return nil
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	if snap.Version > p.currentVersion {
		p.currentVersion = snap.Version
		p.fingerprint = snap.Fingerprint
	}
	p.mu.Unlock()

	p.logger.Info("discovered existing snapshot", "version", snap.Version, "tasks", len(snap.Tasks))

	return nil
}

// Publish stores a new snapshot version when the content changed.
//
// Tasks and users are sorted by id before hashing, so the fingerprint does
// not depend on the order in which they were read. The query time is not
// part of the fingerprint.
//
// Parameters:
//   - ctx: Context for cancellation
//   - tasks: Current task population
//   - users: Current user population
//   - queryTime: Service-side time of the read that produced the population
//
// Returns:
//   - bool: true when a new version was written, false when the content was unchanged
//   - error: ErrPublishFailed wrapping the cause on marshal or KV failure
//
// Example:
//
//	published, err := publisher.Publish(ctx, tasks, users, result.QueryTime)
//	if err != nil {
//	    return err
//	}
func (p *Publisher) Publish(
	ctx context.Context,
	tasks []types.TaskData,
	users []types.UserData,
	queryTime time.Time,
) (bool, error) {
	tasks = slices.SortedFunc(slices.Values(tasks), func(a, b types.TaskData) int {
		return cmp.Compare(a.TaskID, b.TaskID)
	})
	users = slices.SortedFunc(slices.Values(users), func(a, b types.UserData) int {
		return cmp.Compare(a.ID, b.ID)
	})

	fp, err := Fingerprint(tasks, users)
	if err != nil {
		return false, fmt.Errorf("%w: %w", types.ErrPublishFailed, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.currentVersion > 0 && fp == p.fingerprint {
		p.logger.Debug("snapshot unchanged, skipping publish", "version", p.currentVersion)
		return false, nil
	}

	snap := Snapshot{
		Version:     p.currentVersion + 1,
		Fingerprint: fp,
		QueryTime:   queryTime,
		PublishedAt: time.Now(),
		Tasks:       tasks,
		Users:       users,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("%w: marshal: %w", types.ErrPublishFailed, err)
	}

	if _, err := p.kv.Put(ctx, CurrentKey, data); err != nil {
		return false, fmt.Errorf("%w: %w", types.ErrPublishFailed, err)
	}

	p.currentVersion = snap.Version
	p.fingerprint = fp

	p.metrics.RecordSnapshotPublished(snap.Version, len(tasks))
	p.logger.Info("snapshot published",
		"version", snap.Version,
		"tasks", len(tasks),
		"users", len(users),
		"bytes", len(data))

	return true, nil
}

// Load reads the latest snapshot from KV.
//
// Returns:
//   - Snapshot: The stored snapshot
//   - error: ErrSnapshotNotFound when nothing was published yet
func (p *Publisher) Load(ctx context.Context) (Snapshot, error) {
	entry, err := p.kv.Get(ctx, CurrentKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Snapshot{}, types.ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return snap, nil
}

// CurrentVersion returns the last published or discovered version (0 if none).
func (p *Publisher) CurrentVersion() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.currentVersion
}
