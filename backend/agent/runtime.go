package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/furisto/seyal/backend/event"
	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/backend/secret"
	"github.com/furisto/seyal/backend/tool"
	"github.com/furisto/seyal/shared/keylock"
	"github.com/maypok86/otter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyGoal     = errors.New("please enter a goal")
	ErrNotEnoughData = errors.New("not enough data yet, log a few days of actions before reflecting")
	ErrMissingAPIKey = errors.New("please provide an API key to run the agents")
	ErrNoEncryption  = errors.New("no encryption configured for session API keys")
)

// ProviderFactory builds a provider client for an API key.
type ProviderFactory func(ctx context.Context, kind model.ProviderKind, apiKey string) (model.ModelProvider, error)

type RuntimeOptions struct {
	Provider        model.ProviderKind
	Models          model.RoleModels
	APIKeys         *secret.APIKeyResolver
	Encryption      *secret.Client
	Bus             *event.Bus
	ProviderFactory ProviderFactory
	ProviderOptions []model.ProviderOption
	CacheSize       int
	CacheTTL        time.Duration
	Metrics         prometheus.Registerer
}

type RuntimeOption func(*RuntimeOptions)

func WithProvider(kind model.ProviderKind) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.Provider = kind
	}
}

// WithRoleModels overrides the models of individual roles. Empty entries keep
// the provider defaults.
func WithRoleModels(models model.RoleModels) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.Models = models
	}
}

func WithAPIKeys(resolver *secret.APIKeyResolver) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.APIKeys = resolver
	}
}

func WithEncryption(client *secret.Client) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.Encryption = client
	}
}

func WithBus(bus *event.Bus) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.Bus = bus
	}
}

func WithProviderFactory(factory ProviderFactory) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.ProviderFactory = factory
	}
}

func WithProviderOptions(opts ...model.ProviderOption) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.ProviderOptions = opts
	}
}

func WithProviderCache(size int, ttl time.Duration) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.CacheSize = size
		o.CacheTTL = ttl
	}
}

func WithMetrics(registry prometheus.Registerer) RuntimeOption {
	return func(o *RuntimeOptions) {
		o.Metrics = registry
	}
}

func DefaultRuntimeOptions() *RuntimeOptions {
	return &RuntimeOptions{
		Provider:  model.ProviderKindGemini,
		CacheSize: 128,
		CacheTTL:  time.Hour,
	}
}

// Runtime runs the agent roles against the memory bank of a session.
type Runtime struct {
	bank       *memory.MemoryBank
	bus        *event.Bus
	roles      *Roles
	kind       model.ProviderKind
	apiKeys    *secret.APIKeyResolver
	encryption *secret.Client
	factory    ProviderFactory
	providers  otter.Cache[string, model.ModelProvider]
	metrics    *runtimeMetrics

	locks *keylock.Locker
}

func NewRuntime(bank *memory.MemoryBank, opts ...RuntimeOption) (*Runtime, error) {
	options := DefaultRuntimeOptions()
	for _, opt := range opts {
		opt(options)
	}

	factory := options.ProviderFactory
	if factory == nil {
		providerOptions := options.ProviderOptions
		factory = func(ctx context.Context, kind model.ProviderKind, apiKey string) (model.ModelProvider, error) {
			return model.NewProvider(ctx, kind, apiKey, providerOptions...)
		}
	}

	providers, err := otter.MustBuilder[string, model.ModelProvider](options.CacheSize).
		WithTTL(options.CacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create provider cache: %w", err)
	}

	models := options.Models.Merge(model.DefaultRoleModels(options.Provider))

	return &Runtime{
		bank:       bank,
		bus:        options.Bus,
		roles:      NewRoles(models, bank),
		kind:       options.Provider,
		apiKeys:    options.APIKeys,
		encryption: options.Encryption,
		factory:    factory,
		providers:  providers,
		metrics:    newRuntimeMetrics(options.Metrics),
		locks:      keylock.New(),
	}, nil
}

func (r *Runtime) Close() {
	r.providers.Close()
}

func (r *Runtime) Bank() *memory.MemoryBank {
	return r.bank
}

func (r *Runtime) Roles() *Roles {
	return r.roles
}

func (r *Runtime) Provider() model.ProviderKind {
	return r.kind
}

// lock serializes the agent operations of one session so two requests never
// race on the same model call.
func (r *Runtime) lock(sessionID string) func() {
	return r.locks.Lock(sessionID)
}

type RoadmapResult struct {
	Reply string
	State *memory.State
}

// GenerateRoadmap asks the planner to split goal into milestones. The
// planner stores them through the update_roadmap tool.
func (r *Runtime) GenerateRoadmap(ctx context.Context, sessionID, goal string) (*RoadmapResult, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrEmptyGoal
	}

	unlock := r.lock(sessionID)
	defer unlock()

	provider, err := r.providerFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := r.bank.SetGoal(ctx, sessionID, goal); err != nil {
		return nil, err
	}

	result, err := r.run(ctx, sessionID, r.roles.Planner, provider, PlannerPrompt(goal))
	if err != nil {
		return nil, err
	}

	state, err := r.bank.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if result.ToolCalls > 0 && len(state.Roadmap) > 0 {
		publish(r.bus, event.RoadmapUpdatedEvent{
			SessionID:  sessionID,
			Goal:       goal,
			Milestones: state.Roadmap,
			Timestamp:  time.Now(),
		})
	} else {
		slog.WarnContext(ctx, "planner answered without saving a roadmap", "session_id", sessionID)
	}

	return &RoadmapResult{Reply: result.Text, State: state}, nil
}

// GenerateTasks asks the task manager for today's micro-tasks and replaces
// the session's task list with them.
func (r *Runtime) GenerateTasks(ctx context.Context, sessionID string) (*memory.State, error) {
	unlock := r.lock(sessionID)
	defer unlock()

	provider, err := r.providerFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state, err := r.bank.State(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := r.run(ctx, sessionID, r.roles.TaskManager, provider, TasksPrompt(state.Roadmap, state.LongTermSummary))
	if err != nil {
		return nil, err
	}

	state, err = r.bank.SetTasks(ctx, sessionID, result.Text)
	if err != nil {
		return nil, err
	}

	publish(r.bus, event.TasksGeneratedEvent{
		SessionID: sessionID,
		Count:     len(state.Tasks),
		Timestamp: time.Now(),
	})
	return state, nil
}

func (r *Runtime) ToggleTask(ctx context.Context, sessionID string, index int, done bool) (*memory.State, error) {
	state, err := r.bank.ToggleTask(ctx, sessionID, index, done)
	if err != nil {
		return nil, err
	}

	publish(r.bus, event.TaskToggledEvent{
		SessionID: sessionID,
		Index:     index,
		Text:      state.Tasks[index].Text,
		Done:      done,
		Timestamp: time.Now(),
	})
	return state, nil
}

// LogProgress appends a daily update. When the log outgrows the compaction
// threshold the summarizer role folds the oldest entries into the long-term
// summary. A missing API key only surfaces as a failed summary.
func (r *Runtime) LogProgress(ctx context.Context, sessionID, update string, mood memory.Mood) (*memory.LogResult, error) {
	unlock := r.lock(sessionID)
	defer unlock()

	var usage model.Usage
	summarizer := NewSummarizer(r.roles.Summarizer,
		func(ctx context.Context) (model.ModelProvider, error) {
			return r.providerFor(ctx, sessionID)
		},
		func(ctx context.Context, _ string, u model.Usage) {
			usage = usage.Add(u)
		},
	)

	result, err := r.bank.LogDailyUpdate(ctx, sessionID, update, mood, summarizer)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	publish(r.bus, event.ProgressLoggedEvent{
		SessionID:      sessionID,
		EntryID:        result.Entry.ID,
		Mood:           string(result.Entry.Mood),
		CompletedTasks: len(result.Entry.CompletedTasks),
		Timestamp:      now,
	})

	if result.Compacted > 0 {
		failed := result.SummaryErr != nil
		r.metrics.recordCompaction(failed)
		r.recordUsage(ctx, sessionID, r.roles.Summarizer.Model, usage)

		state, err := r.bank.State(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		publish(r.bus, event.MemoryCompactedEvent{
			SessionID: sessionID,
			Compacted: result.Compacted,
			Retained:  len(state.Logs),
			Failed:    failed,
			Timestamp: now,
		})
	}

	return result, nil
}

// Reflect asks the reflector for a progress report. It refuses to run before
// anything was logged.
func (r *Runtime) Reflect(ctx context.Context, sessionID string) (string, error) {
	unlock := r.lock(sessionID)
	defer unlock()

	state, err := r.bank.State(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if !state.HasHistory() {
		return "", ErrNotEnoughData
	}

	provider, err := r.providerFor(ctx, sessionID)
	if err != nil {
		return "", err
	}

	result, err := r.run(ctx, sessionID, r.roles.Reflector, provider, ReflectPrompt)
	if err != nil {
		return "", err
	}

	publish(r.bus, event.ReportGeneratedEvent{
		SessionID: sessionID,
		Model:     r.roles.Reflector.Model,
		Length:    len(result.Text),
		Timestamp: time.Now(),
	})
	return result.Text, nil
}

func (r *Runtime) State(ctx context.Context, sessionID string) (*memory.State, error) {
	return r.bank.State(ctx, sessionID)
}

func (r *Runtime) Reset(ctx context.Context, sessionID string) error {
	unlock := r.lock(sessionID)
	defer unlock()

	if err := r.bank.Reset(ctx, sessionID); err != nil {
		return err
	}

	publish(r.bus, event.SessionResetEvent{
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
	return nil
}

// SetAPIKey seals key and stores it on the session. It is used whenever no
// process wide key is configured.
func (r *Runtime) SetAPIKey(ctx context.Context, sessionID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingAPIKey
	}

	if r.encryption == nil {
		return ErrNoEncryption
	}

	sealed, err := r.encryption.Encrypt([]byte(key), secret.SessionAssociated(sessionID))
	if err != nil {
		return err
	}

	return r.bank.SetEncryptedAPIKey(ctx, sessionID, sealed)
}

// HasAPIKey reports whether agent operations can run for the session.
func (r *Runtime) HasAPIKey(ctx context.Context, sessionID string) bool {
	_, err := r.apiKey(ctx, sessionID)
	return err == nil
}

// Cost estimates what the session's model usage cost so far.
func (r *Runtime) Cost(state *memory.State) decimal.Decimal {
	total := decimal.Zero
	for name, usage := range state.Usage {
		total = total.Add(model.EstimateCost(name, model.Usage{
			InputTokens:      usage.InputTokens,
			OutputTokens:     usage.OutputTokens,
			CacheWriteTokens: usage.CacheWriteTokens,
			CacheReadTokens:  usage.CacheReadTokens,
		}))
	}
	return total
}

func (r *Runtime) run(ctx context.Context, sessionID string, agent *Agent, provider model.ModelProvider, prompt string) (*Result, error) {
	ctx = tool.ContextWithSession(ctx, sessionID)

	start := time.Now()
	result, err := agent.Run(ctx, provider, prompt)
	r.metrics.recordRun(agent.Name, err)
	if err != nil {
		slog.ErrorContext(ctx, "agent run failed", "agent", agent.Name, "session_id", sessionID, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "agent run completed",
		"agent", agent.Name,
		"session_id", sessionID,
		"model", agent.Model,
		"duration", time.Since(start),
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
	)

	r.recordUsage(ctx, sessionID, agent.Model, result.Usage)
	return result, nil
}

func (r *Runtime) recordUsage(ctx context.Context, sessionID, modelName string, usage model.Usage) {
	if usage == (model.Usage{}) {
		return
	}

	err := r.bank.RecordUsage(ctx, sessionID, modelName, memory.TokenUsage{
		InputTokens:      usage.InputTokens,
		OutputTokens:     usage.OutputTokens,
		CacheWriteTokens: usage.CacheWriteTokens,
		CacheReadTokens:  usage.CacheReadTokens,
		Calls:            1,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record usage", "session_id", sessionID, "error", err)
	}
}

// apiKey prefers a key entered for the session over the process wide one.
func (r *Runtime) apiKey(ctx context.Context, sessionID string) (string, error) {
	state, err := r.bank.State(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if len(state.EncryptedAPIKey) > 0 && r.encryption != nil {
		key, err := r.encryption.Decrypt(state.EncryptedAPIKey, secret.SessionAssociated(sessionID))
		if err == nil {
			return string(key), nil
		}
		slog.WarnContext(ctx, "failed to decrypt session API key", "session_id", sessionID, "error", err)
	}

	if r.apiKeys != nil {
		key, _, err := r.apiKeys.Resolve()
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, secret.ErrNoAPIKey) {
			return "", err
		}
	}

	return "", ErrMissingAPIKey
}

func (r *Runtime) providerFor(ctx context.Context, sessionID string) (model.ModelProvider, error) {
	key, err := r.apiKey(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256([]byte(key))
	cacheKey := string(r.kind) + ":" + hex.EncodeToString(digest[:])

	if provider, ok := r.providers.Get(cacheKey); ok {
		return provider, nil
	}

	provider, err := r.factory(ctx, r.kind, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", r.kind, err)
	}

	r.providers.Set(cacheKey, provider)
	return provider, nil
}

func publish[T event.Event](bus *event.Bus, e T) {
	if bus != nil {
		event.Publish(bus, e)
	}
}
