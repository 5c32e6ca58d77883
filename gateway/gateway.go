// Package gateway is the resilient LLM request gateway facade: it wires
// the response cache, batcher, priority queue, failover director (with
// its own per-provider token bucket, circuit breaker, and retry
// engine), and an execution-phase timeout ceiling into the two
// caller-facing operations, GetCompletion and AskQuestion.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/aperturestack/llmgateway/batch"
	"github.com/aperturestack/llmgateway/cache"
	"github.com/aperturestack/llmgateway/failover"
	"github.com/aperturestack/llmgateway/observe"
	"github.com/aperturestack/llmgateway/provider"
	"github.com/aperturestack/llmgateway/queue"
	"github.com/aperturestack/llmgateway/resilience"
)

// ErrNoModel is returned when neither a per-call model nor
// Config.DefaultModel is set.
var ErrNoModel = errors.New("gateway: no model configured")

// Gateway composes the gateway's concurrency core behind the two
// caller-facing operations of §6.
type Gateway struct {
	cfg      Config
	cache    *cache.LoadingCache
	batcher  *batch.Batcher
	queue    *queue.PriorityQueue
	director *failover.Director
	timeout  *resilience.Timeout
	obs      observe.Observer
}

// New constructs a Gateway from cfg. It resolves any secret-referenced
// provider tokens, builds one failover.ProviderEntry per configured
// provider, and starts the batcher's sweeper and the queue's
// dispatcher.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	cfg = cfg.withDefaults()

	if len(cfg.Providers) == 0 {
		return nil, failover.ErrNoProviders
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("gateway: build observer: %w", err)
	}

	entries := make([]*failover.ProviderEntry, 0, len(cfg.Providers))
	for _, spec := range cfg.Providers {
		token := spec.APIToken
		if cfg.SecretProvider != nil {
			resolved, err := cfg.SecretProvider.Resolve(ctx, spec.APIToken)
			if err != nil {
				return nil, fmt.Errorf("gateway: resolve secret for provider %s: %w", spec.Name, err)
			}
			token = resolved
		}

		entries = append(entries, failover.NewProviderEntry(failover.ProviderConfig{
			Name:     spec.Name,
			Priority: spec.Priority,
			Endpoint: spec.Endpoint,
			APIToken: token,
			Bucket:   cfg.bucketConfig(),
			Breaker:  cfg.breakerConfig(),
			LiveGate: resilience.RateLimiterConfig{Rate: cfg.PerSecondRate, Burst: int(cfg.PerSecondBurst)},
			Bulkhead: resilience.BulkheadConfig{MaxConcurrent: 10},
			Retry:    cfg.retryConfig(),
			Observer: obs,
		}))
	}

	director, err := failover.NewDirector(entries...)
	if err != nil {
		return nil, err
	}

	backend := cfg.Cache
	if backend == nil {
		backend = cache.NewMemoryCache(cache.DefaultPolicy())
	}
	loadingCache := cache.NewLoadingCache(backend, cfg.CacheTTL)

	g := &Gateway{
		cfg:      cfg,
		cache:    loadingCache,
		director: director,
		timeout:  resilience.NewTimeout(resilience.TimeoutConfig{Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second}),
		obs:      obs,
	}

	g.queue = queue.New(queue.Config{
		Capacity:       cfg.queueConfig().Capacity,
		RequestTimeout: cfg.queueConfig().RequestTimeout,
		Coalescer:      queue.NewCoalescer(256, 30*time.Second),
		OnStateChange:  g.onQueueEvent,
	})

	batchCfg := cfg.batchConfig()
	batchCfg.Flush = g.flushBatch
	g.batcher = batch.New(batchCfg)

	return g, nil
}

// Close releases the queue's dispatcher, the batcher's sweeper, and
// the observer's telemetry providers.
func (g *Gateway) Close() error {
	g.queue.Close()
	g.batcher.Close()
	return g.obs.Shutdown(context.Background())
}

// GetCompletion is the gateway's primary caller-facing operation (§6):
// cache lookup, then batching, then priority dispatch through the
// failover director.
func (g *Gateway) GetCompletion(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, g.cfg.DefaultModel, prompt, g.cfg.MaxTokenLimit)
}

// AskQuestion composes the literal §6 prompt form from a question and
// a code context, then dispatches it exactly like GetCompletion.
func (g *Gateway) AskQuestion(ctx context.Context, question, codeContext string) (string, error) {
	prompt := fmt.Sprintf("\n\nI have the following code:\n\n%s\n\nMy question is: %s", codeContext, question)
	return g.GetCompletion(ctx, prompt)
}

func (g *Gateway) complete(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	if model == "" {
		return "", newGatewayError(KindUpstream, ErrNoModel)
	}
	if maxTokens <= 0 || maxTokens > g.cfg.MaxTokenLimit {
		maxTokens = g.cfg.MaxTokenLimit
	}

	fp := fingerprint(model, prompt)
	value, err := g.cache.GetOrLoad(ctx, fp, func(ctx context.Context) ([]byte, error) {
		result, err := g.batcher.Submit(ctx, model, prompt, maxTokens)
		if err != nil {
			return nil, classifyBatchError(err)
		}
		if result.Err != nil {
			return nil, classifyTicketError(result.Err)
		}
		return []byte(result.Value), nil
	})
	if err != nil {
		var gerr *GatewayError
		if errors.As(err, &gerr) {
			return "", gerr
		}
		return "", newGatewayError(KindUpstream, err)
	}

	return string(value), nil
}

// fingerprint computes the §4.8 response-cache key from modelName and
// prompt. The failover director, not the cache, picks which provider
// ultimately serves a request, so providerName is omitted from the
// hash input (unlike the literal H(providerName||modelName||prompt)
// form) rather than pinned to whichever provider happened to serve an
// earlier identical request.
func fingerprint(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "|" + prompt))
	return "completion:" + hex.EncodeToString(sum[:])
}

// flushBatch is the batcher's FlushFunc: it enqueues exactly one ticket
// per flushed batch key onto the priority queue and waits for its
// terminal result.
func (g *Gateway) flushBatch(ctx context.Context, key batch.Key) (string, error) {
	req := provider.TextMessage(key.Model, key.Prompt, key.MaxTokens)

	ticket, err := g.queue.Enqueue(ctx, key.Model, key.Prompt, key.MaxTokens, 0, func(ctx context.Context) queue.Result {
		var text string
		err := g.timeout.Execute(ctx, func(ctx context.Context) error {
			var completeErr error
			text, completeErr = g.director.Complete(ctx, req)
			return completeErr
		})
		return queue.Result{Value: text, Err: err}
	})
	if err != nil {
		return "", err
	}

	result, err := ticket.Wait(ctx)
	if err != nil {
		return "", err
	}
	return result.Value, result.Err
}

func (g *Gateway) onQueueEvent(event string, t *queue.Ticket) {
	logger := g.obs.Logger()
	switch event {
	case "dispatched":
		logger.Debug(context.Background(), "ticket dispatched", observe.Field{Key: "ticket_id", Value: t.ID})
	case "timeout":
		logger.Warn(context.Background(), "ticket timed out", observe.Field{Key: "ticket_id", Value: t.ID})
	case "cancelled":
		logger.Debug(context.Background(), "ticket cancelled", observe.Field{Key: "ticket_id", Value: t.ID})
	}
}

// classifyBatchError maps a batch.Batcher-level error to a Kind.
func classifyBatchError(err error) error {
	if errors.Is(err, batch.ErrClosed) {
		return newGatewayError(KindUpstream, err)
	}
	if errors.Is(err, context.Canceled) {
		return newGatewayError(KindCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newGatewayError(KindTimeout, err)
	}
	return newGatewayError(KindUpstream, err)
}

// classifyTicketError maps a queue.Ticket/failover.Director terminal
// error to a Kind (§7's taxonomy).
func classifyTicketError(err error) error {
	switch {
	case errors.Is(err, queue.ErrTimeout):
		return newGatewayError(KindTimeout, err)
	case errors.Is(err, queue.ErrCancelled):
		return newGatewayError(KindCancelled, err)
	case errors.Is(err, queue.ErrQueueFull):
		return newGatewayError(KindCapacityExceeded, err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		return newGatewayError(KindBreakerOpen, err)
	case errors.Is(err, resilience.ErrTimeout):
		return newGatewayError(KindTimeout, err)
	case errors.Is(err, context.Canceled):
		return newGatewayError(KindCancelled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newGatewayError(KindTimeout, err)
	}

	var allFailed *failover.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		return newGatewayError(KindAllProvidersFailed, err)
	}

	return newGatewayError(KindUpstream, err)
}
