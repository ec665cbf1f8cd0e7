package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tripkit/internal/domain"
	"tripkit/internal/metrics"
)

const tracerName = "tripkit/internal/tool"

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Auditor receives one record per invocation.
type Auditor interface {
	LogInvocation(ctx context.Context, rec domain.InvocationRecord) error
}

// Registry holds the capability set and invokes capabilities by name.
// Registration normally happens once at startup; lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	caps    map[string]domain.Capability
	logger  *slog.Logger
	tracer  trace.Tracer
	auditor Auditor
}

// Option configures a Registry.
type Option func(*Registry)

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

// WithAuditor appends every invocation to a ledger.
func WithAuditor(a Auditor) Option {
	return func(r *Registry) { r.auditor = a }
}

func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		caps:   make(map[string]domain.Capability),
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds c to the set. Names are unique; the schema is copied so
// later changes by the caller do not leak in.
func (r *Registry) Register(c domain.Capability) error {
	if !validName.MatchString(c.Name) {
		return fmt.Errorf("%w: capability name %q", domain.ErrInvalidRequest, c.Name)
	}
	if c.Invoke == nil {
		return fmt.Errorf("%w: capability %s has no invoke function", domain.ErrInvalidRequest, c.Name)
	}
	if c.InputSchema == nil {
		c.InputSchema = ToolParameters(nil, nil)
	}
	c.InputSchema = cloneMap(c.InputSchema)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[c.Name]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateCapability, c.Name)
	}
	r.caps[c.Name] = c
	r.logger.Debug("registered capability", "name", c.Name)
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(caps ...domain.Capability) {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

// Get returns a copy of the named capability.
func (r *Registry) Get(name string) (domain.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[name]
	if !ok {
		return domain.Capability{}, false
	}
	c.InputSchema = cloneMap(c.InputSchema)
	return c, true
}

// List returns every capability sorted by name.
func (r *Registry) List() []domain.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Capability, 0, len(r.caps))
	for _, c := range r.caps {
		c.InputSchema = cloneMap(c.InputSchema)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Definitions returns the serialisable capability list, sorted by name.
func (r *Registry) Definitions() []domain.CapabilityDefinition {
	caps := r.List()
	defs := make([]domain.CapabilityDefinition, len(caps))
	for i, c := range caps {
		defs[i] = c.Definition()
	}
	return defs
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for n := range r.caps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named capability once. Failures are returned as-is;
// nothing is retried.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	ctx, span := r.tracer.Start(ctx, "tool.invoke", trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	start := time.Now()
	c, ok := r.Get(name)
	var (
		result any
		err    error
	)
	if !ok {
		err = fmt.Errorf("%w: %s (available: %v)", domain.ErrUnknownCapability, name, r.Names())
	} else {
		result, err = c.Invoke(ctx, args)
	}
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		code := domain.ErrorCode(err)
		span.SetAttributes(attribute.String("tool.error_code", code))
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("capability failed", "name", name, "code", code, "duration_ms", elapsed.Milliseconds(), "err", err)
	} else {
		r.logger.Debug("capability invoked", "name", name, "duration_ms", elapsed.Milliseconds())
	}
	span.SetAttributes(attribute.String("tool.outcome", outcome))

	metrics.CapabilityInvocation(name, outcome).Inc()
	metrics.CapabilityLatency.Observe(elapsed.Seconds())

	if r.auditor != nil {
		rec := domain.InvocationRecord{
			Capability: name,
			Arguments:  encodeArgs(args),
			Outcome:    outcome,
			ErrorCode:  domain.ErrorCode(err),
			DurationMs: elapsed.Milliseconds(),
			CreatedAt:  start,
		}
		if aerr := r.auditor.LogInvocation(context.WithoutCancel(ctx), rec); aerr != nil {
			r.logger.Warn("cannot audit invocation", "name", name, "err", aerr)
		}
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

func encodeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}

// IsUnknown reports whether err came from invoking an unregistered name.
func IsUnknown(err error) bool {
	return errors.Is(err, domain.ErrUnknownCapability)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
