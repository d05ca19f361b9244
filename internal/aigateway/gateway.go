// Package aigateway implements C7: a single generate() operation
// fronting a pluggable text-generation provider, with a deterministic
// mock fallback and a usage log independent of the governance event
// log (spec.md §4.6).
package aigateway

import (
	"context"
	"time"
)

// Purpose tags why a generation call is being made (spec.md §4.6).
type Purpose string

const (
	PurposeInterpreter     Purpose = "interpreter"
	PurposeCommentary      Purpose = "commentary"
	PurposeReportSim       Purpose = "report_sim"
	PurposeReportGov       Purpose = "report_gov"
	PurposeReportPrivate   Purpose = "report_private"
	PurposeClassifier      Purpose = "classifier"
	PurposeEvaluator       Purpose = "evaluator"
)

// Request is the single-operation contract's input.
type Request struct {
	Purpose      Purpose
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// UsageRecord is written to a usage log separate from the governance
// log (spec.md §4.6 "Usage record ... is written to a separate usage
// log independent of the governance log").
type UsageRecord struct {
	Purpose          Purpose
	ModelID          string
	InputTokens      int
	OutputTokens     int
	CacheTokens      int
	LatencyMS        int64
	UsedMock         bool
	GeneratedAt      time.Time
}

// Response is generate()'s output.
type Response struct {
	Text  string
	Usage UsageRecord
}

// UsageSink persists a UsageRecord. Implementations typically write to
// the ai_usage_log table (C12); the in-memory default used by tests
// and callers that don't care simply drops records.
type UsageSink interface {
	Record(ctx context.Context, rec UsageRecord) error
}

type discardSink struct{}

func (discardSink) Record(ctx context.Context, rec UsageRecord) error { return nil }

// Provider performs the actual text generation against a real model.
// A Gateway without a configured Provider (or one running with
// Disabled=true) always uses the deterministic Mock.
type Provider interface {
	Invoke(ctx context.Context, req Request) (text string, modelID string, inputTokens, outputTokens int, err error)
}

// Gateway is the C7 facade. It is safe for concurrent use.
type Gateway struct {
	provider Provider
	disabled bool
	mock     *Mock
	sink     UsageSink
	retry    RetryPolicy
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithProvider installs a real generation backend.
func WithProvider(p Provider) Option {
	return func(g *Gateway) { g.provider = p }
}

// WithDisabled forces the mock path even when a Provider is
// configured (spec.md §4.6 "When the external model is unavailable or
// disabled").
func WithDisabled(disabled bool) Option {
	return func(g *Gateway) { g.disabled = disabled }
}

// WithUsageSink installs a UsageRecord destination.
func WithUsageSink(sink UsageSink) Option {
	return func(g *Gateway) { g.sink = sink }
}

// WithRetryPolicy overrides the default bounded retry/backoff policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Gateway) { g.retry = p }
}

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New builds a Gateway. With no options it runs entirely on the mock
// path, satisfying spec.md's "Tests must run entirely on the mock
// path" determinism contract out of the box.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		mock:  NewMock(),
		sink:  discardSink{},
		retry: DefaultRetryPolicy(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate is the single C7 operation. On provider error it retries
// per g.retry; permanent failures surface as a typed
// apperrors.CodeAIGatewayPermanent error, transient failures that
// exhaust retries surface as apperrors.CodeAIGatewayTransient (spec.md
// §4.6 "Failure semantics").
func (g *Gateway) Generate(ctx context.Context, req Request) (Response, error) {
	start := g.now()
	if g.provider == nil || g.disabled {
		text := g.mock.Generate(req)
		usage := UsageRecord{
			Purpose:     req.Purpose,
			ModelID:     "mock",
			OutputTokens: len(text) / 4,
			LatencyMS:   0,
			UsedMock:    true,
			GeneratedAt: g.now(),
		}
		_ = g.sink.Record(ctx, usage)
		return Response{Text: text, Usage: usage}, nil
	}

	text, modelID, inTok, outTok, err := g.invokeWithRetry(ctx, req)
	latency := g.now().Sub(start).Milliseconds()
	if err != nil {
		return Response{}, err
	}
	usage := UsageRecord{
		Purpose:      req.Purpose,
		ModelID:      modelID,
		InputTokens:  inTok,
		OutputTokens: outTok,
		LatencyMS:    latency,
		GeneratedAt:  g.now(),
	}
	_ = g.sink.Record(ctx, usage)
	return Response{Text: text, Usage: usage}, nil
}
