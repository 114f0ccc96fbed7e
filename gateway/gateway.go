// Package gateway mediates every read and write of entity collections.
// Collections are stored whole under one key each; every mutation reads the
// full collection, checks code uniqueness or id existence, and writes the
// full updated collection back. Results use the success/error/pending envelope.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giygas/benefits-api/apperrors"
	"github.com/giygas/benefits-api/entities"
	"github.com/giygas/benefits-api/logging"
	"github.com/giygas/benefits-api/metrics"
	"github.com/giygas/benefits-api/storage"
	"github.com/goccy/go-json"
)

// Status is the outcome of a gateway call
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPending Status = "pending"
)

// Reason classifies an error result for callers; it is not serialized
type Reason int

const (
	ReasonNone Reason = iota
	ReasonConflict
	ReasonNotFound
)

// Messages returned in the envelope
const (
	MessageFetched = "Data fetched successfully"
	MessageSet     = "Data set successfully"
	MessageUpdated = "Data updated successfully"
	MessageDeleted = "Data deleted successfully"
)

// Result is the uniform envelope returned by every gateway call
type Result[T any] struct {
	Status  Status `json:"status"`
	Data    []T    `json:"data"`
	Message string `json:"message"`
	Reason  Reason `json:"-"`
}

// OK reports whether the call succeeded
func (r Result[T]) OK() bool {
	return r.Status == StatusSuccess
}

// Err converts an error result into the matching error kind
func (r Result[T]) Err() error {
	switch {
	case r.Status == StatusSuccess:
		return nil
	case r.Reason == ReasonConflict:
		return apperrors.Wrap(apperrors.ErrUniquenessConflict, r.Message)
	case r.Reason == ReasonNotFound:
		return apperrors.Wrap(apperrors.ErrNotFound, r.Message)
	default:
		return fmt.Errorf("%s", r.Message)
	}
}

// Entity is anything stored in a collection: identified by id, unique by code
type Entity interface {
	GetID() string
	GetCode() string
}

// Store is the capability the flows depend on; Collection implements it
type Store[T Entity] interface {
	List(ctx context.Context) (Result[T], error)
	Insert(ctx context.Context, items ...T) (Result[T], error)
	Update(ctx context.Context, id string, fields any) (Result[T], error)
	Delete(ctx context.Context, id string) (Result[T], error)
}

// Option configures a Gateway
type Option func(*Gateway)

// WithLatency simulates a storage round trip before every read and write
func WithLatency(read, write time.Duration) Option {
	return func(g *Gateway) {
		g.readLatency = read
		g.writeLatency = write
	}
}

// Gateway wraps a KV store. Each operation runs its read-modify-write under
// one lock, but separate operations are not composable into a transaction.
type Gateway struct {
	kv           storage.KV
	mu           sync.Mutex
	readLatency  time.Duration
	writeLatency time.Duration
}

// New creates a gateway over kv
func New(kv storage.KV, opts ...Option) *Gateway {
	g := &Gateway{kv: kv}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ping checks the underlying store
func (g *Gateway) Ping(ctx context.Context) error {
	return g.kv.Ping(ctx)
}

// record is one stored entity kept as raw JSON members so fields this
// binary does not know about survive a shallow merge
type record map[string]json.RawMessage

func (r record) stringField(name string) string {
	raw, ok := r[name]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

// simulate waits for the configured latency. Started operations are never
// cancelled, so the caller's context only carries values here.
func simulate(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}

func (g *Gateway) load(ctx context.Context, collection string) ([]record, error) {
	raw, ok, err := g.kv.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return []record{}, nil
	}

	var records []record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	if records == nil {
		records = []record{}
	}
	return records, nil
}

func (g *Gateway) save(ctx context.Context, collection string, records []record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", collection, err)
	}
	return g.kv.Put(ctx, collection, raw)
}

func toRecord(value any) (record, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("value is not a JSON object: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("value is not a JSON object")
	}
	return rec, nil
}

func decode[T any](records []record) ([]T, error) {
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func storageFailure(collection, op string, err error) error {
	logging.Error("Storage operation failed", "collection", collection, "operation", op, "error", err)
	metrics.GatewayOperations.WithLabelValues(collection, op, "failure").Inc()
	return fmt.Errorf("%s %s: %w: %v", op, collection, apperrors.ErrStorageFailure, err)
}

func observe[T any](collection, op string, result Result[T]) Result[T] {
	metrics.GatewayOperations.WithLabelValues(collection, op, string(result.Status)).Inc()
	return result
}

// Collection is a typed view of one named collection
type Collection[T Entity] struct {
	gateway *Gateway
	name    string
	label   string
}

// Compile-time checks to ensure Collection implements Store
var (
	_ Store[entities.CoverageCode]      = (*Collection[entities.CoverageCode])(nil)
	_ Store[entities.MedicalPlanDetail] = (*Collection[entities.MedicalPlanDetail])(nil)
)

// NewCollection binds a collection name; label names the entity in messages
// such as "Coverage code already exists".
func NewCollection[T Entity](g *Gateway, name, label string) *Collection[T] {
	return &Collection[T]{gateway: g, name: name, label: label}
}

// Name returns the collection (storage key) name
func (c *Collection[T]) Name() string {
	return c.name
}

// List reads the full collection; a missing key yields an empty list
func (c *Collection[T]) List(ctx context.Context) (Result[T], error) {
	ctx = context.WithoutCancel(ctx)
	simulate(c.gateway.readLatency)

	c.gateway.mu.Lock()
	records, err := c.gateway.load(ctx, c.name)
	c.gateway.mu.Unlock()
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "list", err)
	}

	data, err := decode[T](records)
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "list", err)
	}
	return observe(c.name, "list", Result[T]{Status: StatusSuccess, Data: data, Message: MessageFetched}), nil
}

// Insert appends entities unless any of their codes is already taken.
// The batch is all-or-nothing.
func (c *Collection[T]) Insert(ctx context.Context, items ...T) (Result[T], error) {
	ctx = context.WithoutCancel(ctx)
	simulate(c.gateway.writeLatency)

	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()

	records, err := c.gateway.load(ctx, c.name)
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "insert", err)
	}

	taken := make(map[string]bool, len(records)+len(items))
	for _, rec := range records {
		taken[rec.stringField("code")] = true
	}

	added := make([]record, 0, len(items))
	for _, entity := range items {
		if taken[entity.GetCode()] {
			return observe(c.name, "insert", c.conflict()), nil
		}
		taken[entity.GetCode()] = true

		rec, err := toRecord(entity)
		if err != nil {
			return Result[T]{}, storageFailure(c.name, "insert", err)
		}
		added = append(added, rec)
	}

	updated := append(records, added...)
	if err := c.gateway.save(ctx, c.name, updated); err != nil {
		return Result[T]{}, storageFailure(c.name, "insert", err)
	}

	data, err := decode[T](updated)
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "insert", err)
	}
	return observe(c.name, "insert", Result[T]{Status: StatusSuccess, Data: data, Message: MessageSet}), nil
}

// Update shallow-merges fields into the entity with id. fields must encode
// to a JSON object; its top-level members replace the stored ones. A new
// non-empty code is checked against every other entity. The id itself is
// never replaced.
func (c *Collection[T]) Update(ctx context.Context, id string, fields any) (Result[T], error) {
	ctx = context.WithoutCancel(ctx)
	simulate(c.gateway.writeLatency)

	patch, err := toRecord(fields)
	if err != nil {
		return Result[T]{}, fmt.Errorf("invalid update for %s: %w", c.name, err)
	}
	delete(patch, "id")

	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()

	records, err := c.gateway.load(ctx, c.name)
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "update", err)
	}

	index := -1
	for i, rec := range records {
		if rec.stringField("id") == id {
			index = i
			break
		}
	}
	if index < 0 {
		return observe(c.name, "update", c.notFound()), nil
	}

	if code := patch.stringField("code"); code != "" {
		for i, rec := range records {
			if i != index && rec.stringField("code") == code {
				return observe(c.name, "update", c.conflict()), nil
			}
		}
	}

	merged := make(record, len(records[index])+len(patch))
	for key, value := range records[index] {
		merged[key] = value
	}
	for key, value := range patch {
		merged[key] = value
	}
	records[index] = merged

	if err := c.gateway.save(ctx, c.name, records); err != nil {
		return Result[T]{}, storageFailure(c.name, "update", err)
	}

	data, err := decode[T](records)
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "update", err)
	}
	return observe(c.name, "update", Result[T]{Status: StatusSuccess, Data: data, Message: MessageUpdated}), nil
}

// Delete removes the entity with id and persists the remaining collection
func (c *Collection[T]) Delete(ctx context.Context, id string) (Result[T], error) {
	ctx = context.WithoutCancel(ctx)
	simulate(c.gateway.writeLatency)

	c.gateway.mu.Lock()
	defer c.gateway.mu.Unlock()

	records, err := c.gateway.load(ctx, c.name)
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "delete", err)
	}

	remaining := make([]record, 0, len(records))
	found := false
	for _, rec := range records {
		if rec.stringField("id") == id {
			found = true
			continue
		}
		remaining = append(remaining, rec)
	}
	if !found {
		return observe(c.name, "delete", c.notFound()), nil
	}

	if err := c.gateway.save(ctx, c.name, remaining); err != nil {
		return Result[T]{}, storageFailure(c.name, "delete", err)
	}

	data, err := decode[T](remaining)
	if err != nil {
		return Result[T]{}, storageFailure(c.name, "delete", err)
	}
	return observe(c.name, "delete", Result[T]{Status: StatusSuccess, Data: data, Message: MessageDeleted}), nil
}

func (c *Collection[T]) conflict() Result[T] {
	return Result[T]{Status: StatusError, Data: nil, Message: c.label + " already exists", Reason: ReasonConflict}
}

func (c *Collection[T]) notFound() Result[T] {
	return Result[T]{Status: StatusError, Data: nil, Message: c.label + " not found", Reason: ReasonNotFound}
}
