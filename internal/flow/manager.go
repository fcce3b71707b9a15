package flow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BTreeMap/CareRouter/internal/catalog"
	"github.com/BTreeMap/CareRouter/internal/cards"
	"github.com/BTreeMap/CareRouter/internal/genai"
	"github.com/BTreeMap/CareRouter/internal/intent"
	"github.com/BTreeMap/CareRouter/internal/metrics"
	"github.com/BTreeMap/CareRouter/internal/models"
	"github.com/BTreeMap/CareRouter/internal/state"
	"github.com/BTreeMap/CareRouter/internal/store"
	"github.com/BTreeMap/CareRouter/internal/suggest"
)

// DefaultTimeout bounds a single handler call.
const DefaultTimeout = 30 * time.Second

// Turn outcomes reported to metrics.
const (
	outcomeOK        = "ok"
	outcomeNextSteps = "next_steps"
	outcomeApology   = "apology"
)

var tracer = otel.Tracer("github.com/BTreeMap/CareRouter/internal/flow")

// RecordSink receives conversation records. store.Recorder satisfies it.
type RecordSink interface {
	Record(r store.Record)
}

// Manager runs the per-turn pipeline: lock, load, route, respond, update, decorate,
// commit and record.
type Manager struct {
	handlers   Handlers
	classifier *intent.Classifier
	router     *Router
	selector   *cards.Selector
	suggester  *suggest.Suggester
	store      state.Store
	locks      *state.Locks
	sessions   *genai.Sessions
	recorder   RecordSink
	metrics    *metrics.Metrics
	timeout    time.Duration
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClassifier sets the intent classifier.
func WithClassifier(c *intent.Classifier) Option {
	return func(m *Manager) { m.classifier = c }
}

// WithSuggester sets the suggested-replies generator.
func WithSuggester(s *suggest.Suggester) Option {
	return func(m *Manager) { m.suggester = s }
}

// WithSelector sets the card selector.
func WithSelector(s *cards.Selector) Option {
	return func(m *Manager) { m.selector = s }
}

// WithCatalog sets the catalog used by the router and the default selector.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(m *Manager) {
		m.router = NewRouter(cat)
		if m.selector == nil {
			m.selector = cards.NewSelector(cat, cards.WithClock(m.now))
		}
	}
}

// WithStateStore sets the conversation state store.
func WithStateStore(s state.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithLocks sets the per-user lock table.
func WithLocks(l *state.Locks) Option {
	return func(m *Manager) { m.locks = l }
}

// WithSessions sets the backend session registry.
func WithSessions(s *genai.Sessions) Option {
	return func(m *Manager) { m.sessions = s }
}

// WithRecorder sets where conversation records go.
func WithRecorder(r RecordSink) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithMetrics sets the metrics collector.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithTimeout sets the per-call handler timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock overrides the clock. It should precede WithCatalog and WithSelector.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager over handlers. Unset collaborators get keyword
// classification, template suggestions, an in-memory store and the embedded catalog.
func NewManager(handlers Handlers, opts ...Option) (*Manager, error) {
	if err := handlers.Validate(); err != nil {
		return nil, fmt.Errorf("invalid handler set: %w", err)
	}
	m := &Manager{
		handlers: handlers,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.classifier == nil {
		m.classifier = intent.NewClassifier(nil)
	}
	if m.suggester == nil {
		m.suggester = suggest.NewSuggester(nil)
	}
	if m.router == nil {
		m.router = NewRouter(nil)
	}
	if m.selector == nil {
		m.selector = cards.NewSelector(nil, cards.WithClock(m.now))
	}
	if m.store == nil {
		m.store = state.NewMemoryStore(state.WithClock(m.now))
	}
	if m.locks == nil {
		m.locks = state.NewLocks()
	}
	if m.sessions == nil {
		m.sessions = genai.NewSessions()
	}
	slog.Debug("Manager.NewManager: manager ready", "lab_test", handlers.LabTest != nil, "timeout", m.timeout)
	return m, nil
}

// ProcessMessage runs one turn for userID and always returns an envelope. Failures
// produce the apology envelope and leave the stored state untouched.
func (m *Manager) ProcessMessage(ctx context.Context, userID, message string) models.Envelope {
	if userID == "" {
		userID = models.DefaultUserID
	}
	ctx, span := tracer.Start(ctx, "flow.ProcessMessage",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()
	start := m.now()

	unlock, err := m.locks.Lock(ctx, userID)
	if err != nil {
		slog.Warn("Manager.ProcessMessage: lock wait abandoned", "user_id", userID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock")
		m.metrics.ObserveTurn(string(models.HandlerOrchestrator), outcomeApology, time.Since(start))
		return Apology(m.now())
	}
	defer unlock()

	m.record(userID, store.RecordUserMessage, "", message)

	env, outcome := m.turnSafely(ctx, userID, message)
	if outcome == outcomeApology {
		span.SetStatus(codes.Error, "turn failed")
	}
	span.SetAttributes(attribute.String("handler", string(env.Agent)), attribute.String("outcome", outcome))

	m.record(userID, store.RecordAgentResponse, env.Agent, env.Response)
	m.metrics.ObserveTurn(string(env.Agent), outcome, m.now().Sub(start))
	return env
}

// turnSafely converts a panic inside the turn into the apology envelope.
func (m *Manager) turnSafely(ctx context.Context, userID, message string) (env models.Envelope, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Manager.turnSafely: recovered from panic", "user_id", userID, "panic", r, "stack", string(debug.Stack()))
			env, outcome = Apology(m.now()), outcomeApology
		}
	}()
	return m.turn(ctx, userID, message)
}

func (m *Manager) turn(ctx context.Context, userID, input string) (models.Envelope, string) {
	st, err := m.store.Load(ctx, userID)
	if err != nil {
		slog.Error("Manager.turn: failed to load state", "user_id", userID, "error", err)
		return Apology(m.now()), outcomeApology
	}

	if ShouldResetCycle(input, st) {
		ResetCycle(st)
	}

	res := m.classifier.Classify(ctx, input, st.ConversationHistory, st.ActiveHandler)
	m.metrics.ObserveIntent(string(res.Intent), string(res.Source))
	in := m.resolveIntent(res.Intent)

	d := m.router.Route(in, input, st)
	if d.Switched {
		m.metrics.ObserveSwitch(string(d.Previous), string(d.Handler))
	}

	if d.NextSteps {
		st.AppendHistory(input, NextStepsMenu)
		env := Assemble(NextStepsMenu, models.HandlerOrchestrator, cards.QuickReplies(NextStepsOptions...), nil, m.now())
		if err := m.commit(ctx, st); err != nil {
			return Apology(m.now()), outcomeApology
		}
		return env, outcomeNextSteps
	}

	agent, served := m.handlers.agentFor(d.Handler)
	if served != d.Handler {
		slog.Info("Manager.turn: handler not configured, using fallback", "user_id", userID, "requested", d.Handler, "served", served)
		m.metrics.ObserveFallback(string(d.Handler), string(served))
		st.ActiveHandler = served
		d.Handler = served
		d.Payload = m.router.Payload(d, input, st)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	reply, err := agent.Respond(callCtx, m.sessions.ID(userID, string(served)), d.Payload)
	cancel()
	if err != nil {
		slog.Error("Manager.turn: handler failed", "user_id", userID, "handler", served, "error", err)
		return Apology(m.now()), outcomeApology
	}

	Update(input, reply, st, served)

	cs := m.selector.Select(input, reply, st, served)
	if len(cs) > 0 {
		m.metrics.ObserveCards(string(cs[0].CardType()), len(cs))
	}
	suggestions := m.suggester.Suggest(ctx, input, reply, st, served)

	if err := m.commit(ctx, st); err != nil {
		return Apology(m.now()), outcomeApology
	}
	return Assemble(reply, served, cs, suggestions, m.now()), outcomeOK
}

// resolveIntent redirects lab_test to scheduling when no lab_test handler is configured,
// so the scheduling entry rules and test detection apply.
func (m *Manager) resolveIntent(in models.Intent) models.Intent {
	if in == models.IntentLabTest && m.handlers.LabTest == nil {
		m.metrics.ObserveFallback(string(models.HandlerLabTest), string(models.HandlerScheduling))
		return models.IntentScheduling
	}
	return in
}

func (m *Manager) commit(ctx context.Context, st *models.ConversationState) error {
	st.UpdatedAt = m.now()
	if err := m.store.Save(ctx, st); err != nil {
		slog.Error("Manager.commit: failed to save state", "user_id", st.UserID, "error", err)
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (m *Manager) record(userID string, typ store.RecordType, h models.Handler, content string) {
	if m.recorder == nil {
		return
	}
	m.recorder.Record(store.Record{
		UserID:    userID,
		Type:      typ,
		Handler:   string(h),
		Content:   content,
		Timestamp: m.now(),
	})
}

// State returns the stored state of userID without creating one.
func (m *Manager) State(ctx context.Context, userID string) (*models.ConversationState, error) {
	return m.store.Get(ctx, userID)
}

// Reset forgets userID entirely.
func (m *Manager) Reset(ctx context.Context, userID string) error {
	unlock, err := m.locks.Lock(ctx, userID)
	if err != nil {
		return err
	}
	defer unlock()
	slog.Info("Manager.Reset: conversation reset", "user_id", userID)
	return m.store.Delete(ctx, userID)
}
