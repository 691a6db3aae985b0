// Package registry is the narrow contract onto the declarative job
// registry: a key-value datastore holding one hash per job id, plus a
// pub/sub channel used to wake the reconciler on writes.
//
// The reconciliation engine never talks to redis directly; it only
// ever sees the Registry interface, so the core stays testable against
// an in-memory fake while production wiring uses go-redis.
package registry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Record is a job record as stored in the registry. Only the fields
// below are read; any other hash fields are not carried in Record, and
// since WriteField sets one field at a time they are left untouched in
// the registry.
type Record struct {
	Status              string
	Parameters          string
	Deleted             bool
	SubmissionTimestamp string
	JobName             string
	Namespace           string
	Errors              string

	// Present reports whether any record exists at all for the job id;
	// a zero Record with Present=false is the "absent" case.
	Present bool
}

// Field names as stored in the registry hash.
const (
	FieldStatus              = "status"
	FieldParameters           = "parameters"
	FieldDeleted              = "deleted"
	FieldSubmissionTimestamp  = "submission_timestamp"
	FieldJobName              = "job_name"
	FieldNamespace            = "namespace"
	FieldErrors               = "errors"
)

// deletedTrue is the sentinel value written/read for FieldDeleted.
const deletedTrue = "1"

// PubSubMessage is what start_listener hands the callback.
type PubSubMessage struct {
	JobID string
}

// Registry is the narrow contract the reconciler depends on. It maps
// 1:1 onto spec.md §6's registry contract.
type Registry interface {
	ReadRecord(ctx context.Context, jobID string) (Record, error)
	WriteField(ctx context.Context, jobID, field, value string) error
	// IterateEntries scans the keyspace in batches. Pass cursor "0" to
	// begin; a returned cursor of "0" signals the scan is complete.
	IterateEntries(ctx context.Context, cursor string) (nextCursor string, jobIDs []string, err error)
	ReadManyEntries(ctx context.Context, jobIDs []string) (map[string]Record, error)
	// StartListener subscribes to the registry's pub/sub channel and
	// invokes cb for every message until ctx is canceled.
	StartListener(ctx context.Context, cb func(PubSubMessage)) error
}

const (
	keyPrefix = "job:"
	channel   = "train-conductor:job-updates"
	scanCount = 100
)

func keyFor(jobID string) string {
	return keyPrefix + jobID
}

func jobIDFromKey(key string) string {
	return key[len(keyPrefix):]
}

// RedisRegistry is the production Registry, backed by go-redis.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry wraps an already-constructed *redis.Client. Building
// the client (addr, TLS, auth) is the caller's concern — the registry
// only owns the key/field/scan/pubsub protocol on top of it.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) ReadRecord(ctx context.Context, jobID string) (Record, error) {
	fields, err := r.client.HGetAll(ctx, keyFor(jobID)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("registry: read record %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return Record{}, nil
	}
	return recordFromFields(fields), nil
}

func recordFromFields(fields map[string]string) Record {
	return Record{
		Present:             true,
		Status:              fields[FieldStatus],
		Parameters:          fields[FieldParameters],
		Deleted:             fields[FieldDeleted] == deletedTrue,
		SubmissionTimestamp: fields[FieldSubmissionTimestamp],
		JobName:             fields[FieldJobName],
		Namespace:            fields[FieldNamespace],
		Errors:               fields[FieldErrors],
	}
}

func (r *RedisRegistry) WriteField(ctx context.Context, jobID, field, value string) error {
	if err := r.client.HSet(ctx, keyFor(jobID), field, value).Err(); err != nil {
		return fmt.Errorf("registry: write field %s/%s: %w", jobID, field, err)
	}
	return r.client.Publish(ctx, channel, jobID).Err()
}

func (r *RedisRegistry) IterateEntries(ctx context.Context, cursor string) (string, []string, error) {
	var cur uint64
	if cursor != "" && cursor != "0" {
		if _, err := fmt.Sscanf(cursor, "%d", &cur); err != nil {
			return "0", nil, fmt.Errorf("registry: bad cursor %q: %w", cursor, err)
		}
	}
	keys, next, err := r.client.Scan(ctx, cur, keyPrefix+"*", scanCount).Result()
	if err != nil {
		return "0", nil, fmt.Errorf("registry: scan: %w", err)
	}
	jobIDs := make([]string, len(keys))
	for i, k := range keys {
		jobIDs[i] = jobIDFromKey(k)
	}
	return fmt.Sprintf("%d", next), jobIDs, nil
}

func (r *RedisRegistry) ReadManyEntries(ctx context.Context, jobIDs []string) (map[string]Record, error) {
	out := make(map[string]Record, len(jobIDs))
	if len(jobIDs) == 0 {
		return out, nil
	}
	pipe := r.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(jobIDs))
	for _, id := range jobIDs {
		cmds[id] = pipe.HGetAll(ctx, keyFor(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("registry: pipeline read many: %w", err)
	}
	for id, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		out[id] = recordFromFields(fields)
	}
	return out, nil
}

func (r *RedisRegistry) StartListener(ctx context.Context, cb func(PubSubMessage)) error {
	sub := r.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("registry: subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			cb(PubSubMessage{JobID: msg.Payload})
		}
	}
}
