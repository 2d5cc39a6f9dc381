package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
	"github.com/EngSayh/Fixzit-sub003/internal/observability/logging"
	"github.com/EngSayh/Fixzit-sub003/internal/observability/tracing"
	"github.com/EngSayh/Fixzit-sub003/internal/repository"
	"github.com/EngSayh/Fixzit-sub003/internal/resilience/circuitbreaker"
	"github.com/EngSayh/Fixzit-sub003/internal/resilience/retry"
)

// Mode selects whether Dispatch waits for delivery.
type Mode int

const (
	// ModeBackground runs delivery in a detached goroutine and returns at once.
	ModeBackground Mode = iota
	// ModeAwait runs delivery on the caller's goroutine under the caller's context.
	ModeAwait
)

// DefaultMaxRetries is the attempt budget per channel when none is given.
const DefaultMaxRetries = 3

// DispatchOptions tunes a single Dispatch call.
type DispatchOptions struct {
	// MaxRetries is the total attempts per channel. Zero means the dispatcher default.
	MaxRetries int

	// Mode defaults to ModeBackground.
	Mode Mode

	// Backoff overrides the delay curve between attempts. MaxAttempts is ignored.
	Backoff *retry.Config
}

// DispatcherConfig holds the process-wide dispatch settings.
type DispatcherConfig struct {
	MaxRetries      int
	ProviderTimeout time.Duration
	PersistTimeout  time.Duration
	Backoff         retry.Config
}

// DefaultDispatcherConfig returns the settings used when the environment sets nothing.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxRetries:      DefaultMaxRetries,
		ProviderTimeout: 10 * time.Second,
		PersistTimeout:  defaultPersistTimeout,
		Backoff:         retry.ChannelSendConfig(DefaultMaxRetries),
	}
}

// ChannelHealthStatus is the circuit breaker view of one registered channel.
type ChannelHealthStatus struct {
	Channel            entity.Channel `json:"channel"`
	State              string         `json:"state"`
	CircuitBreakerOpen bool           `json:"circuitBreakerOpen"`
}

// Dispatcher delivers notifications over every channel their recipients prefer.
//
// Channels run concurrently, each with its own sequential retry loop, and the
// Dispatcher waits for all of them before it writes the outcome onto the
// notification in a single step. Provider errors never escape Dispatch; they
// end up in the channel results and in the dead-letter sink.
type Dispatcher struct {
	senders  map[entity.Channel]Sender
	breakers map[entity.Channel]*circuitbreaker.CircuitBreaker
	store    repository.NotificationLogStore
	dlq      repository.DeadLetterSink
	logger   *slog.Logger
	cfg      DispatcherConfig
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	closed   bool

	wg             sync.WaitGroup
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// NewDispatcher creates a Dispatcher. Senders are keyed by their channel; a
// later sender for the same channel replaces an earlier one. store and dlq may
// be nil.
func NewDispatcher(senders []Sender, store repository.NotificationLogStore, dlq repository.DeadLetterSink, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultDispatcherConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = def.ProviderTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}
	if cfg.Backoff.InitialDelay <= 0 && cfg.Backoff.Multiplier == 0 {
		cfg.Backoff = def.Backoff
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		senders:        make(map[entity.Channel]Sender, len(senders)),
		breakers:       make(map[entity.Channel]*circuitbreaker.CircuitBreaker, len(senders)),
		store:          store,
		dlq:            dlq,
		logger:         logger,
		cfg:            cfg,
		now:            time.Now,
		inFlight:       make(map[string]struct{}),
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}

	for _, s := range senders {
		ch := s.Channel()
		d.senders[ch] = s

		cbCfg := circuitbreaker.ChannelConfig(string(ch))
		cbCfg.OnStateChange = func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				RecordCircuitBreakerOpen(string(ch))
			}
		}
		d.breakers[ch] = circuitbreaker.New(cbCfg)
	}

	return d
}

// Dispatch delivers n. It returns an error only when n cannot be dispatched at
// all: nil, missing its org id, already dispatched, or the Dispatcher is
// shutting down.
//
// In ModeBackground the caller's notification is not modified; the outcome is
// visible through the log store. In ModeAwait n carries the outcome when
// Dispatch returns, and cancellation of ctx abandons outstanding attempts while
// the partial outcome is still persisted.
func (d *Dispatcher) Dispatch(ctx context.Context, n *entity.Notification, opts DispatchOptions) error {
	if n == nil {
		return ErrNilNotification
	}
	if strings.TrimSpace(n.OrgID) == "" {
		d.dropTenantless(ctx, "dispatch", n.ID)
		return entity.ErrMissingTenant
	}
	if n.Status.IsTerminal() {
		return ErrAlreadyDispatched
	}

	key := n.OrgID + "/" + n.ID
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrShuttingDown
	}
	if _, ok := d.inFlight[key]; ok {
		d.mu.Unlock()
		return ErrAlreadyDispatched
	}
	d.inFlight[key] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	if opts.Mode == ModeAwait {
		defer d.release(key)
		d.run(ctx, n, opts)
		return nil
	}

	snapshot := n.Snapshot()
	parent := trace.LinkFromContext(ctx)
	go func() {
		defer d.release(key)
		d.run(d.shutdownCtx, snapshot, opts, trace.WithLinks(parent))
	}()
	return nil
}

func (d *Dispatcher) release(key string) {
	d.mu.Lock()
	delete(d.inFlight, key)
	d.mu.Unlock()
	d.wg.Done()
}

// run performs grouping, fan-out, aggregation, persistence and dead-lettering.
func (d *Dispatcher) run(ctx context.Context, n *entity.Notification, opts DispatchOptions, spanOpts ...trace.SpanStartOption) {
	logger := logging.WithNotification(d.logger, n.OrgID, n.ID)

	activeDispatches.Inc()
	defer activeDispatches.Dec()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in notification dispatch",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	spanOpts = append(spanOpts, trace.WithAttributes(
		attribute.String("notification.id", n.ID),
		attribute.String("notification.event", string(n.Event)),
		attribute.String("org.id", n.OrgID),
	))
	ctx, span := tracing.GetTracer().Start(ctx, "notify.dispatch", spanOpts...)
	defer span.End()

	backoff := d.backoffFor(opts)
	groups := d.groupByChannel(ctx, logger, n.Recipients)

	results := make([]entity.ChannelDispatchResult, len(groups))
	msg := MessageFrom(n)

	var wg sync.WaitGroup
	for i, g := range groups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.sendChannel(ctx, logger, msg, g, backoff)
		}()
	}
	wg.Wait()

	d.applyOutcome(n, results)

	span.SetAttributes(
		attribute.String("notification.status", string(n.Status)),
		attribute.Int("notification.channels", len(results)),
	)
	if n.Status != entity.StatusSent {
		span.SetStatus(codes.Error, n.FailureReason)
	}

	logger.InfoContext(ctx, "notification dispatched",
		slog.String("status", string(n.Status)),
		slog.Int("channels", len(results)),
		slog.String("failure_reason", n.FailureReason))
	RecordDispatched(string(n.Status))

	// Persistence must not be skipped because the caller gave up.
	persistCtx := context.WithoutCancel(ctx)
	d.persist(persistCtx, logger, n)
	d.deadLetter(persistCtx, logger, n)
}

func (d *Dispatcher) backoffFor(opts DispatchOptions) retry.Config {
	cfg := d.cfg.Backoff
	if opts.Backoff != nil {
		cfg = *opts.Backoff
	}
	cfg.MaxAttempts = d.cfg.MaxRetries
	if opts.MaxRetries > 0 {
		cfg.MaxAttempts = opts.MaxRetries
	}
	cfg.RetryIf = retry.Always
	return cfg
}

// groupByChannel builds one group per channel that has at least one recipient
// who prefers it and is contactable on it. Uncontactable preferences and
// channels without a registered sender are skipped with a warning.
func (d *Dispatcher) groupByChannel(ctx context.Context, logger *slog.Logger, recipients []entity.Recipient) []channelGroup {
	var groups []channelGroup
	for _, ch := range entity.AllChannels {
		eligible, skipped := contactableFor(recipients, ch)
		if len(skipped) > 0 {
			recordSkipped(string(ch), len(skipped))
			logger.WarnContext(ctx, "recipients skipped: missing contact for preferred channel",
				slog.String("channel", string(ch)),
				slog.Any("user_ids", skipped))
		}
		if len(eligible) == 0 {
			continue
		}
		if _, ok := d.senders[ch]; !ok {
			logger.WarnContext(ctx, "no sender registered for channel",
				slog.String("channel", string(ch)),
				slog.Int("recipients", len(eligible)))
			continue
		}
		groups = append(groups, channelGroup{channel: ch, recipients: eligible})
	}
	return groups
}

// sendChannel runs one channel's retry loop and returns its result. It never
// panics and never returns an error; failures are recorded in the result.
func (d *Dispatcher) sendChannel(ctx context.Context, logger *slog.Logger, msg Message, g channelGroup, backoff retry.Config) (res entity.ChannelDispatchResult) {
	ch := string(g.channel)
	res = entity.ChannelDispatchResult{Channel: g.channel}
	logger = logger.With(slog.String("channel", ch))

	ctx, span := tracing.GetTracer().Start(ctx, "notify.channel", trace.WithAttributes(
		attribute.String("notify.channel", ch),
		attribute.Int("notify.recipients", len(g.recipients)),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in channel task",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			res.Outcome = entity.OutcomeFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			span.SetStatus(codes.Error, res.Error)
		}
	}()

	sender := d.senders[g.channel]
	breaker := d.breakers[g.channel]

	attempts, err := retry.Do(ctx, backoff, func(attempt int) error {
		at := d.now().UTC()
		res.Attempts = attempt
		res.LastAttemptAt = &at

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.ProviderTimeout)
		defer cancel()

		start := time.Now()
		err := breaker.Run(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("sender panic: %v", r)
				}
			}()
			return sender.Send(attemptCtx, msg, g.recipients)
		})
		RecordAttempt(ch, err == nil, time.Since(start))

		if err != nil {
			logger.WarnContext(ctx, "channel send attempt failed",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", backoff.MaxAttempts),
				slog.Any("error", err))
		}
		return err
	})
	res.Attempts = attempts
	span.SetAttributes(attribute.Int("notify.attempts", attempts))

	if err != nil {
		res.Outcome = entity.OutcomeFailed
		res.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "channel failed")
		logger.ErrorContext(ctx, "channel failed after retries",
			slog.Int("attempts", attempts),
			slog.Bool("circuit_open", errors.Is(err, circuitbreaker.ErrOpen)),
			slog.Any("error", err))
		return res
	}

	res.Outcome = entity.OutcomeSent
	logger.InfoContext(ctx, "channel sent", slog.Int("attempts", attempts))
	return res
}

// applyOutcome is the only place a dispatch writes to the notification.
func (d *Dispatcher) applyOutcome(n *entity.Notification, results []entity.ChannelDispatchResult) {
	status, reason := aggregate(results)
	sentAt := d.now().UTC()

	n.ChannelResults = results
	n.Status = status
	n.FailureReason = reason
	n.SentAt = &sentAt
}

// aggregate derives the notification status from its channel results.
func aggregate(results []entity.ChannelDispatchResult) (entity.Status, string) {
	if len(results) == 0 {
		return entity.StatusFailed, FailureNoChannels
	}

	failed := 0
	for _, r := range results {
		if r.Outcome != entity.OutcomeSent {
			failed++
		}
	}

	switch {
	case failed == len(results):
		return entity.StatusFailed, fmt.Sprintf("All %d channels failed", failed)
	case failed > 0:
		return entity.StatusPartialFailure, fmt.Sprintf("%d of %d channels failed", failed, len(results))
	default:
		return entity.StatusSent, ""
	}
}

func (d *Dispatcher) persist(ctx context.Context, logger *slog.Logger, n *entity.Notification) {
	if d.store == nil {
		return
	}
	if strings.TrimSpace(n.OrgID) == "" {
		d.dropTenantless(ctx, "log_store", n.ID)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.PersistTimeout)
	defer cancel()

	if err := d.store.Upsert(ctx, n); err != nil {
		recordPersistenceFailure("log")
		logger.ErrorContext(ctx, "failed to persist notification outcome",
			slog.String("status", string(n.Status)),
			slog.Any("error", err))
	}
}

// deadLetter enqueues one entry per failed channel.
func (d *Dispatcher) deadLetter(ctx context.Context, logger *slog.Logger, n *entity.Notification) {
	var entries []entity.DeadLetterEntry
	for _, r := range n.ChannelResults {
		if r.Outcome != entity.OutcomeFailed {
			continue
		}
		entries = append(entries, entity.DeadLetterEntry{
			ID:             uuid.NewString(),
			OrgID:          n.OrgID,
			NotificationID: n.ID,
			Channel:        r.Channel,
			Attempts:       r.Attempts,
			LastError:      r.Error,
			CreatedAt:      d.now().UTC(),
		})
	}
	if len(entries) == 0 || d.dlq == nil {
		return
	}
	if strings.TrimSpace(n.OrgID) == "" {
		d.dropTenantless(ctx, "dead_letter_store", n.ID)
		return
	}

	for _, e := range entries {
		recordDeadLetter(string(e.Channel))
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.PersistTimeout)
	defer cancel()

	if err := d.dlq.InsertMany(ctx, entries); err != nil {
		recordPersistenceFailure("dead_letter")
		logger.ErrorContext(ctx, "failed to enqueue dead letters",
			slog.Int("entries", len(entries)),
			slog.Any("error", err))
		return
	}
	logger.WarnContext(ctx, "channels dead-lettered", slog.Int("entries", len(entries)))
}

func (d *Dispatcher) dropTenantless(ctx context.Context, boundary, notificationID string) {
	recordTenantDrop(boundary)
	logging.Critical(ctx, d.logger, "record without org id dropped",
		slog.String("boundary", boundary),
		slog.String("notification_id", notificationID))
}

// Redeliver attempts a single channel of an already dispatched notification
// through the same retry loop Dispatch uses. It does not modify n and does not
// persist anything.
func (d *Dispatcher) Redeliver(ctx context.Context, n *entity.Notification, ch entity.Channel, maxAttempts int) (entity.ChannelDispatchResult, error) {
	if n == nil {
		return entity.ChannelDispatchResult{}, ErrNilNotification
	}
	if strings.TrimSpace(n.OrgID) == "" {
		d.dropTenantless(ctx, "redeliver", n.ID)
		return entity.ChannelDispatchResult{}, entity.ErrMissingTenant
	}
	if _, ok := d.senders[ch]; !ok {
		return entity.ChannelDispatchResult{}, fmt.Errorf("%w: %s", ErrNoSender, ch)
	}
	eligible, _ := contactableFor(n.Recipients, ch)
	if len(eligible) == 0 {
		return entity.ChannelDispatchResult{}, fmt.Errorf("%w: %s", ErrNotContactable, ch)
	}

	logger := logging.WithNotification(d.logger, n.OrgID, n.ID)
	res := d.sendChannel(ctx, logger, MessageFrom(n), channelGroup{channel: ch, recipients: eligible},
		d.backoffFor(DispatchOptions{MaxRetries: maxAttempts}))
	return res, nil
}

// ChannelHealth reports the circuit breaker state of every registered channel.
func (d *Dispatcher) ChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(d.breakers))
	for _, ch := range entity.AllChannels {
		cb, ok := d.breakers[ch]
		if !ok {
			continue
		}
		statuses = append(statuses, ChannelHealthStatus{
			Channel:            ch,
			State:              cb.State().String(),
			CircuitBreakerOpen: cb.IsOpen(),
		})
	}
	return statuses
}

// Shutdown stops accepting new dispatches and waits for in-flight ones.
// If ctx expires first, outstanding provider calls are cancelled and ctx.Err()
// is returned; their partial outcomes are still persisted.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.logger.Info("shutting down notification dispatcher")

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.shutdownCancel()
		d.logger.Info("notification dispatcher shutdown complete")
		return nil
	case <-ctx.Done():
		d.shutdownCancel()
		d.logger.Warn("notification dispatcher shutdown timeout")
		return ctx.Err()
	}
}
