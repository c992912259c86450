// Package index serves an interval tree to concurrent callers. Writers take
// an exclusive lock, searches share a read lock, and every operation is
// counted through OpenTelemetry instruments.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/itree/pkg/interval"
	"github.com/Sumatoshi-tech/itree/pkg/rangefile"
)

const (
	defaultName = "default"

	instrumentationName = "itree.index"

	// Span names.
	spanLoad    = "itree.index.load"
	spanSearch  = "itree.index.search"
	spanReplace = "itree.index.replace"
)

// Verification errors.
var (
	ErrRedBlack    = errors.New("red-black coloring violated")
	ErrMaxAugment  = errors.New("subtree max out of date")
	ErrOrder       = errors.New("tree order or parent links broken")
	ErrBlackHeight = interval.ErrBlackHeight
)

// ErrInvalidRange is returned for intervals whose low bound exceeds the high bound.
var ErrInvalidRange = interval.ErrInvalidRange

type rangeTree = interval.Tree[interval.Range[int64], int64, string]

// Match is one stored interval returned by a search.
type Match struct {
	Low   int64  `json:"low"`
	High  int64  `json:"high"`
	Value string `json:"value"`
}

// Stats summarizes an index.
type Stats struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	BlackHeight int    `json:"black_height"`
	Inserts     uint64 `json:"inserts"`
	Removes     uint64 `json:"removes"`
	Searches    uint64 `json:"searches"`
}

// Index is a named, lock-protected interval tree of int64 ranges with string payloads.
type Index struct {
	mu   sync.RWMutex
	tree *rangeTree

	name    string
	logger  *slog.Logger
	meter   metric.Meter
	tracer  trace.Tracer
	metrics *indexMetrics

	inserts  atomic.Uint64
	removes  atomic.Uint64
	searches atomic.Uint64

	// generation advances on every mutation, under the write lock.
	generation atomic.Uint64

	// checkReplace, when set, must accept a fresh tree before Replace swaps it in.
	checkReplace func(*rangeTree) error
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) {
		if logger != nil {
			idx.logger = logger
		}
	}
}

// WithMeter sets the meter used for index instruments.
func WithMeter(mt metric.Meter) Option {
	return func(idx *Index) {
		if mt != nil {
			idx.meter = mt
		}
	}
}

// WithTracer sets the tracer used for load and search spans.
func WithTracer(tr trace.Tracer) Option {
	return func(idx *Index) {
		if tr != nil {
			idx.tracer = tr
		}
	}
}

// WithName sets the index name reported in logs and metric attributes.
func WithName(name string) Option {
	return func(idx *Index) {
		if name != "" {
			idx.name = name
		}
	}
}

// WithVerifyOnReplace makes Replace check the red-black and max invariants of
// the fresh tree before swapping it in.
func WithVerifyOnReplace(enabled bool) Option {
	return func(idx *Index) {
		if enabled {
			idx.checkReplace = verifyTree
		}
	}
}

// New creates an empty index. Without options it reports to the global
// OpenTelemetry providers and slog.Default().
func New(opts ...Option) (*Index, error) {
	idx := &Index{
		tree:   interval.NewRangeTree[int64, string](),
		name:   defaultName,
		logger: slog.Default(),
		meter:  otel.GetMeterProvider().Meter(instrumentationName),
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
	}

	for _, opt := range opts {
		opt(idx)
	}

	metrics, err := newIndexMetrics(idx.meter, idx.name, idx.Len)
	if err != nil {
		return nil, err
	}

	idx.metrics = metrics
	idx.logger = idx.logger.With(slog.String(attrIndex, idx.name))

	return idx, nil
}

// Name returns the index name.
func (idx *Index) Name() string {
	return idx.name
}

// Close releases the metric callbacks of the index.
func (idx *Index) Close() error {
	return idx.metrics.close()
}

// Insert stores [low, high] with value. Duplicates are kept.
func (idx *Index) Insert(ctx context.Context, low, high int64, value string) error {
	key, err := interval.NewRange(low, high)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	idx.tree.Insert(key, value)
	idx.generation.Add(1)
	idx.mu.Unlock()

	idx.inserts.Add(1)
	idx.metrics.recordInsert(ctx, 1)

	return nil
}

// Remove deletes one entry equal to ([low, high], value) and reports whether
// one was found.
func (idx *Index) Remove(ctx context.Context, low, high int64, value string) bool {
	key, err := interval.NewRange(low, high)
	if err != nil {
		return false
	}

	idx.mu.Lock()

	removed := idx.tree.Remove(key, value)
	if removed {
		idx.generation.Add(1)
	}

	idx.mu.Unlock()

	if removed {
		idx.removes.Add(1)
		idx.metrics.recordRemove(ctx)
	}

	return removed
}

// Exist reports whether ([low, high], value) is stored.
func (idx *Index) Exist(low, high int64, value string) bool {
	key, err := interval.NewRange(low, high)
	if err != nil {
		return false
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.tree.Exist(key, value)
}

// Search returns every stored interval overlapping [low, high], in ascending order.
func (idx *Index) Search(ctx context.Context, low, high int64) ([]Match, error) {
	query, err := interval.NewRange(low, high)
	if err != nil {
		return nil, err
	}

	return idx.search(ctx, query, kindRange), nil
}

// Stab returns every stored interval containing point.
func (idx *Index) Stab(ctx context.Context, point int64) []Match {
	return idx.search(ctx, interval.Point(point), kindStab)
}

func (idx *Index) search(ctx context.Context, query interval.Range[int64], kind string) []Match {
	ctx, span := idx.tracer.Start(ctx, spanSearch, trace.WithAttributes(
		attribute.String("itree.search.kind", kind),
		attribute.Int64("itree.search.low", query.Low()),
		attribute.Int64("itree.search.high", query.High()),
	))
	defer span.End()

	start := time.Now()

	idx.mu.RLock()
	entries := idx.tree.SearchEntries(query)
	idx.mu.RUnlock()

	matches := make([]Match, len(entries))
	for i, e := range entries {
		matches[i] = Match{Low: e.Key.Low(), High: e.Key.High(), Value: e.Value}
	}

	idx.searches.Add(1)
	idx.metrics.recordSearch(ctx, kind, len(matches), time.Since(start))
	span.SetAttributes(attribute.Int("itree.search.matches", len(matches)))

	return matches
}

// Len returns the number of stored intervals.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.tree.Len()
}

// Keys returns all stored intervals in ascending order.
func (idx *Index) Keys() []Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	res := make([]Match, 0, idx.tree.Len())
	for key, value := range idx.tree.All() {
		res = append(res, Match{Low: key.Low(), High: key.High(), Value: value})
	}

	return res
}

// Load inserts records under a single write lock. Records are validated
// first; on error nothing is inserted.
func (idx *Index) Load(ctx context.Context, records []rangefile.Record) (int, error) {
	ctx, span := idx.tracer.Start(ctx, spanLoad, trace.WithAttributes(
		attribute.Int("itree.load.records", len(records)),
	))
	defer span.End()

	keys, err := recordKeys(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid record")

		return 0, err
	}

	idx.mu.Lock()
	for i, key := range keys {
		idx.tree.Insert(key, records[i].Value)
	}

	idx.generation.Add(1)
	idx.mu.Unlock()

	idx.inserts.Add(uint64(len(records)))
	idx.metrics.recordInsert(ctx, len(records))
	idx.logger.DebugContext(ctx, "records loaded", "count", len(records))

	return len(records), nil
}

// Replace swaps the whole content of the index for records. The new tree is
// built before the write lock is taken, so searches keep seeing the old
// content until the swap. On error the index is unchanged.
func (idx *Index) Replace(ctx context.Context, records []rangefile.Record) (int, error) {
	ctx, span := idx.tracer.Start(ctx, spanReplace, trace.WithAttributes(
		attribute.Int("itree.load.records", len(records)),
	))
	defer span.End()

	keys, err := recordKeys(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid record")

		return 0, err
	}

	tree := interval.NewRangeTree[int64, string]()
	for i, key := range keys {
		tree.Insert(key, records[i].Value)
	}

	if idx.checkReplace != nil {
		err = idx.checkReplace(tree)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "verify failed")

			return 0, fmt.Errorf("verify replacement: %w", err)
		}
	}

	idx.mu.Lock()
	previous := idx.tree.Len()
	idx.tree = tree
	idx.generation.Add(1)
	idx.mu.Unlock()

	idx.inserts.Add(uint64(len(records)))
	idx.metrics.recordInsert(ctx, len(records))
	idx.logger.InfoContext(ctx, "index replaced", "previous", previous, "count", len(records))

	return len(records), nil
}

func recordKeys(records []rangefile.Record) ([]interval.Range[int64], error) {
	keys := make([]interval.Range[int64], len(records))

	for i, rec := range records {
		key, err := interval.NewRange(rec.Low, rec.High)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}

		keys[i] = key
	}

	return keys, nil
}

// Generation returns a counter that changes whenever the content of the
// index changes. Results computed after reading a generation stay valid for
// as long as Generation returns the same value.
func (idx *Index) Generation() uint64 {
	return idx.generation.Load()
}

// Clear removes every interval.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.tree.Clear()
	idx.generation.Add(1)
}

// Verify runs the tree invariant checks and returns the first violation.
func (idx *Index) Verify() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return verifyTree(idx.tree)
}

func verifyTree(tree *rangeTree) (err error) {
	if !tree.CheckRedBlack() {
		return ErrRedBlack
	}

	if !tree.CheckMax() {
		return ErrMaxAugment
	}

	if !tree.CheckOrder() {
		return ErrOrder
	}

	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok || !errors.Is(rerr, ErrBlackHeight) {
				panic(r)
			}

			err = rerr
		}
	}()

	tree.BlackHeight()

	return nil
}

// Stats returns a snapshot of the index counters and shape.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	size := idx.tree.Len()
	height := blackHeightOrZero(idx.tree)
	idx.mu.RUnlock()

	return Stats{
		Name:        idx.name,
		Size:        size,
		BlackHeight: height,
		Inserts:     idx.inserts.Load(),
		Removes:     idx.removes.Load(),
		Searches:    idx.searches.Load(),
	}
}

func blackHeightOrZero(tree *rangeTree) (height int) {
	defer func() {
		if recover() != nil {
			height = 0
		}
	}()

	return tree.BlackHeight()
}
