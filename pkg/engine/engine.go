package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	internalconfig "github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine/discovery"
	"github.com/aegis-scan/aegis/pkg/engine/discovery/mock"
	"github.com/aegis-scan/aegis/pkg/engine/events"
	"github.com/aegis-scan/aegis/pkg/engine/notifier"
	"github.com/aegis-scan/aegis/pkg/engine/oracle"
	"github.com/aegis-scan/aegis/pkg/engine/persistence"
	"github.com/aegis-scan/aegis/pkg/engine/scangraph"
	"github.com/aegis-scan/aegis/pkg/engine/swarm"
	"github.com/aegis-scan/aegis/pkg/engine/threat/intel"
	"github.com/aegis-scan/aegis/pkg/engine/threat/llm"
	"github.com/aegis-scan/aegis/pkg/scan"
	"github.com/aegis-scan/aegis/pkg/telemetry"
	"github.com/aegis-scan/aegis/pkg/version"
)

// ErrPartialResult indicates the scan completed but some assets or log
// sources were skipped due to provider errors.
var ErrPartialResult = errors.New("scan completed with partial results")

// Config holds the account-level settings a single Run needs: which
// account/project to scan, how to reach it, and where results go. Scan
// tuning (log windows, sampling, per-stage deadlines) lives in
// config.ScanConfig and is forwarded unchanged.
type Config struct {
	AccountID         string
	ProjectID         string
	Credential        scan.Credential
	RequestedServices []string

	MockMode bool

	SlackWebhook string
	SlackChannel string

	Headless bool
	JsonLogs bool
	Verbose  bool

	MaxConcurrency int

	// StrictMode forces a non-zero-equivalent error return on partial
	// results (some assets unreachable, some log sources unavailable).
	StrictMode bool

	OtelEndpoint  string
	SkipTelemetry bool

	Scan       internalconfig.ScanConfig
	Risk       internalconfig.RiskConfig
	AnthropicAPIKey string

	Logger   *slog.Logger
	Provider discovery.Provider
	Adapter  persistence.Adapter
	Sink     events.Sink
}

// Engine is the runtime core that wires the outer Scan Graph onto a
// scangraph.Runtime and runs it to completion.
type Engine struct {
	Swarm  *swarm.Engine
	Logger *slog.Logger
	Tracer trace.Tracer

	config Config

	Notifier *notifier.SlackClient
	Risk     *oracle.RiskEngine
	Intel    *intel.Store
	LLM      llm.Client
}

// Option defines a functional configuration override applied in New.
type Option func(*Engine)

// New initializes the Engine: safe defaults, then each Option in order,
// then telemetry and the dependent clients (notifier, risk engine,
// threat-intel store, LLM client) derived from the final config.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Swarm:  swarm.NewEngine(),
		Logger: slog.New(handler),
		Tracer: otel.Tracer("aegis/engine"),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.config.Logger != nil {
		e.Logger = e.config.Logger
	}
	slog.SetDefault(e.Logger)

	if e.config.MaxConcurrency > 0 {
		e.Swarm.MaxWorkers = e.config.MaxConcurrency
	}

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, e.config.OtelEndpoint)
		if err != nil {
			e.Logger.Warn("telemetry init failed", "error", err)
		} else {
			_ = shutdown
		}
	}

	e.Notifier = notifier.NewSlackClient(e.config.SlackWebhook, e.config.SlackChannel)
	e.Risk = oracle.NewRiskEngine(e.config.Risk)
	e.Intel = intel.NewStore(nil)

	if e.config.AnthropicAPIKey != "" {
		e.LLM = llm.NewAnthropicClient(e.config.AnthropicAPIKey)
	}

	return e, nil
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// WithConcurrency sets the worker pool limit.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.Swarm.MaxWorkers = n
		}
	}
}

// WithLLM overrides the LLM client, bypassing config.AnthropicAPIKey.
// Used by tests to inject llm.NewMockClient.
func WithLLM(c llm.Client) Option {
	return func(e *Engine) { e.LLM = c }
}

// WithConfig sets the account-level config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// Run builds the outer Scan Graph for this invocation's config and
// drives it to completion, returning the final scan.State. A partial
// result (some assets or log sources unreachable) is reported through
// State.Partial and, under StrictMode, as ErrPartialResult rather than a
// nil error — callers that only check err != nil still see success
// unless they opted into strict mode.
func (e *Engine) Run(ctx context.Context) (scan.State, error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()
	defer e.recoverPanic(ctx)

	if !e.config.Headless && !e.config.JsonLogs {
		fmt.Printf("%s %s [%s]\n", version.AppName, version.Current, version.License)
	}

	e.Logger.Info("starting scan", "account", e.config.AccountID, "concurrency", e.Swarm.MaxWorkers)

	provider := e.config.Provider
	if provider == nil {
		provider = mock.New()
	}

	sink := e.config.Sink
	if sink == nil {
		sink = events.NopSink{}
	}

	rt := scangraph.New(e.Swarm, sink)
	BuildOuterGraph(rt, provider, e.LLM, e.config.Scan, e.Risk, e.Intel, e.config.Adapter, e.Notifier, e.config.AccountID)
	rt.SetStart(NodeDiscovery)

	initial := scan.State{
		AccountID:         e.config.AccountID,
		ProjectID:         e.config.ProjectID,
		Credential:        e.config.Credential,
		RequestedServices: e.config.RequestedServices,
	}

	final, err := rt.Run(ctx, initial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return final, err
	}

	if final.Partial {
		span.SetAttributes(attribute.Bool("scan.partial", true))
		if e.config.StrictMode {
			e.Logger.Error("strict mode: failing on partial scan result")
			return final, ErrPartialResult
		}
		e.Logger.Warn("scan finished with partial results", "account", e.config.AccountID)
	}

	return final, nil
}

func (e *Engine) recoverPanic(ctx context.Context) {
	if r := recover(); r != nil {
		tr := otel.Tracer("aegis/engine")
		_, span := tr.Start(ctx, "CriticalPanic")
		stack := debug.Stack()
		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "critical failure")
		span.SetAttributes(
			attribute.String("crash.stack", string(stack)),
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
		)
		span.End()
		e.Logger.Error("critical failure", "error", r, "stack", string(stack))
	}
}

// redactSensitiveData scrubs sensitive keys from log output before it
// leaves the process.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"credential": true, "password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"refresh_token": true, "certificate": true, "signature": true,
		"ssh_key": true, "connection_string": true, "webhook": true,
	}
	if sensitiveKeys[a.Key] {
		return slog.Attr{Key: a.Key, Value: slog.StringValue("[REDACTED]")}
	}
	return a
}
