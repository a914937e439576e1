// Package projector compiles ordered expression sets against Arrow schemas
// into reusable evaluators and runs them over record batches.
//
// Builds are fingerprinted and cached: structurally identical build
// requests reuse the compiled result instead of invoking the backend
// again. Evaluation writes results either into caller-supplied column
// buffer sets or into buffers allocated from a caller-supplied allocator.
package projector

import (
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/columnbase/projector/pkg/backend"
	"github.com/columnbase/projector/pkg/backend/interp"
	"github.com/columnbase/projector/pkg/expr"
	"github.com/columnbase/projector/pkg/selection"
)

// Projector is a compiled evaluator for one (schema, expression set,
// configuration, mode) tuple. It is immutable after construction and safe
// for concurrent use; instances are shared between the cache and every
// caller holding one.
type Projector struct {
	backend      backend.Backend
	schema       *arrow.Schema
	outputFields []arrow.Field
	cfg          *backend.Config
}

// Schema returns the input schema the projector was compiled against.
func (p *Projector) Schema() *arrow.Schema { return p.schema }

// OutputFields returns one field descriptor per expression, in expression
// order.
func (p *Projector) OutputFields() []arrow.Field { return p.outputFields }

// Config returns the configuration the projector was compiled with.
func (p *Projector) Config() *backend.Config { return p.cfg }

// Dump returns the backend's human-readable rendition of the generated
// code, for debugging.
func (p *Projector) Dump() string { return p.backend.Dump() }

// Builder compiles expression sets into Projectors, consulting a bounded
// cache of previous builds. A Builder is safe for concurrent use. Two
// concurrent builds of equal fingerprints may both compile; the later
// cache insertion wins and the compiled results are interchangeable.
type Builder struct {
	factory backend.Factory
	cache   *cache
	logger  log.Logger
	metrics *metrics

	cacheSize int
	reg       prometheus.Registerer
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger builds are reported to.
func WithLogger(logger log.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// WithRegisterer registers the builder's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) BuilderOption {
	return func(b *Builder) { b.reg = reg }
}

// WithCacheSize bounds the number of cached projectors.
func WithCacheSize(size int) BuilderOption {
	return func(b *Builder) { b.cacheSize = size }
}

// NewBuilder returns a Builder compiling through the given backend
// factory.
func NewBuilder(factory backend.Factory, opts ...BuilderOption) (*Builder, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: backend factory cannot be nil", ErrInvalidArgument)
	}

	b := &Builder{
		factory:   factory,
		logger:    log.NewNopLogger(),
		metrics:   newMetrics(),
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(b)
	}

	cache, err := newCache(b.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating projector cache: %w", err)
	}
	b.cache = cache

	if b.reg != nil {
		if err := b.metrics.register(b.reg); err != nil {
			return nil, fmt.Errorf("registering projector metrics: %w", err)
		}
	}
	return b, nil
}

// Make returns a projector for the given build inputs, reusing a cached
// one when an equal fingerprint was built before. On a miss it constructs
// a backend from cfg, validates every expression against schema and the
// backend's type system, compiles, and registers the result; the first
// failure aborts the build with no cache mutation.
func (b *Builder) Make(schema *arrow.Schema, exprs []*expr.Expression, mode selection.Mode, cfg *backend.Config) (*Projector, error) {
	switch {
	case schema == nil:
		return nil, fmt.Errorf("%w: schema cannot be nil", ErrInvalidArgument)
	case len(exprs) == 0:
		return nil, fmt.Errorf("%w: expressions cannot be empty", ErrInvalidArgument)
	case cfg == nil:
		return nil, fmt.Errorf("%w: configuration cannot be nil", ErrInvalidArgument)
	}

	key := newCacheKey(schema, cfg, exprs, mode)
	if cached, ok := b.cache.get(key); ok {
		b.metrics.cacheHits.Inc()
		return cached, nil
	}
	b.metrics.cacheMisses.Inc()

	be, err := b.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing backend: %w", err)
	}

	validator := backend.NewValidator(be.Types(), schema)
	for _, e := range exprs {
		if err := validator.Validate(e); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	if err := be.Compile(exprs, mode); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	outputFields := make([]arrow.Field, len(exprs))
	for i, e := range exprs {
		outputFields[i] = e.Result()
	}

	p := &Projector{backend: be, schema: schema, outputFields: outputFields, cfg: cfg}
	b.cache.put(key, p, elapsed)
	b.metrics.buildSeconds.Observe(elapsed.Seconds())
	level.Debug(b.logger).Log("msg", "compiled projector", "expressions", len(exprs), "mode", mode, "build_time", elapsed)
	return p, nil
}

// defaultBuilder backs the package-level Make. It is initialized lazily on
// first use and never torn down; its cache is shared process-wide.
var defaultBuilder = sync.OnceValue(func() *Builder {
	b, err := NewBuilder(interp.New)
	if err != nil {
		panic(err)
	}
	return b
})

// Make compiles or reuses a projector through the process-wide default
// Builder, which compiles with the interpreter backend. Embedders wanting
// their own backend, cache scope, logger, or metrics use NewBuilder.
func Make(schema *arrow.Schema, exprs []*expr.Expression, mode selection.Mode, cfg *backend.Config) (*Projector, error) {
	return defaultBuilder().Make(schema, exprs, mode, cfg)
}

// EvaluateInto evaluates the projector over batch, writing one column of
// results per output field into the correspondingly shaped entry of out.
// The caller retains ownership of the buffers; they hold valid data only
// when EvaluateInto returns nil.
//
// Each buffer set must satisfy the capacity contract for the effective row
// count: the batch row count, or the selection vector's slot count when
// sel is non-nil.
func (p *Projector) EvaluateInto(batch arrow.Record, sel selection.Vector, out []arrow.ArrayData) error {
	if err := p.validateBatch(batch); err != nil {
		return err
	}
	if len(out) != len(p.outputFields) {
		return fmt.Errorf("%w: number of output buffer sets is %d, expected %d",
			ErrInvalidArgument, len(out), len(p.outputFields))
	}

	rows := effectiveRows(batch, sel)
	for i, data := range out {
		if data == nil {
			return fmt.Errorf("%w: buffer set for output field %s is nil",
				ErrInvalidArgument, p.outputFields[i].Name)
		}
		if err := validateArrayData(data, p.outputFields[i], rows); err != nil {
			return err
		}
	}

	return p.backend.Execute(batch, sel, out)
}

// Evaluate evaluates the projector over batch, allocating output buffers
// from mem and returning one array per output field in field order.
// Ownership of the arrays passes to the caller, who must Release them.
func (p *Projector) Evaluate(batch arrow.Record, sel selection.Vector, mem memory.Allocator) ([]arrow.Array, error) {
	if err := p.validateBatch(batch); err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, fmt.Errorf("%w: memory allocator cannot be nil", ErrInvalidArgument)
	}

	rows := effectiveRows(batch, sel)
	outData := make([]arrow.ArrayData, len(p.outputFields))
	for i, field := range p.outputFields {
		data, err := allocArrayData(field.Type, rows, mem)
		if err != nil {
			releaseAll(outData[:i])
			return nil, err
		}
		outData[i] = data
	}

	if err := p.backend.Execute(batch, sel, outData); err != nil {
		releaseAll(outData)
		return nil, err
	}

	output := make([]arrow.Array, len(outData))
	for i, data := range outData {
		output[i] = array.MakeFromData(data)
		data.Release()
	}
	return output, nil
}

// validateBatch is the shared precondition of both evaluation paths: the
// batch must carry the build-time schema and at least one row.
func (p *Projector) validateBatch(batch arrow.Record) error {
	if batch == nil {
		return fmt.Errorf("%w: batch cannot be nil", ErrInvalidArgument)
	}
	if !batch.Schema().Equal(p.schema) {
		return fmt.Errorf("%w: schema of batch must match schema projector was built with", ErrInvalidArgument)
	}
	if batch.NumRows() == 0 {
		return fmt.Errorf("%w: batch must be non-empty", ErrInvalidArgument)
	}
	return nil
}

func effectiveRows(batch arrow.Record, sel selection.Vector) int64 {
	if sel == nil {
		return batch.NumRows()
	}
	return sel.NumSlots()
}

func releaseAll(data []arrow.ArrayData) {
	for _, d := range data {
		if d != nil {
			d.Release()
		}
	}
}
