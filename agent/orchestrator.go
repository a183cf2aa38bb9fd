package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/google/uuid"

	"github.com/tbxark/flowagent/confirm"
	"github.com/tbxark/flowagent/log"
	"github.com/tbxark/flowagent/metrics"
	"github.com/tbxark/flowagent/registry"
	"github.com/tbxark/flowagent/store"
	"github.com/tbxark/flowagent/types"
	"github.com/tbxark/flowagent/validate"
)

// Orchestrator drives slot-filling conversations one turn at a time.
//
// A turn works on a private copy of the stored state and writes it back
// only at the end of a branch that produced a reply. A failed turn leaves
// the store untouched, so the client can retry it verbatim.
type Orchestrator struct {
	accessor  *registry.Accessor
	extractor *Extractor
	store     store.Store
	validator *validate.Engine
	locks     *store.KeyedMutex

	strictIntent bool
	now          func() time.Time
	newID        func() string
}

type Option func(*Orchestrator)

// WithLenientIntent adopts whatever flow the oracle names, even when the
// registry does not list it.
func WithLenientIntent() Option {
	return func(o *Orchestrator) {
		o.strictIntent = false
	}
}

func WithValidator(engine *validate.Engine) Option {
	return func(o *Orchestrator) {
		o.validator = engine
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) {
		o.newID = newID
	}
}

func NewOrchestrator(reg registry.Registry, extractor *Extractor, st store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		accessor:     registry.NewAccessor(reg),
		extractor:    extractor,
		store:        st,
		locks:        store.NewKeyedMutex(),
		strictIntent: true,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validator == nil {
		o.validator = validate.NewEngine()
	}
	return o
}

func (o *Orchestrator) Turn(ctx context.Context, req *types.TurnRequest) (*types.Response, error) {
	start := time.Now()
	ctx = callbacks.EnsureRunInfo(ctx, "FlowAgent", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"conversation_id": req.ConversationID,
		"message":         req.Message,
	})

	defer func() {
		if r := recover(); r != nil {
			callbacks.OnError(ctx, fmt.Errorf("panic in Orchestrator.Turn: %v", r))
			panic(r)
		}
	}()

	resp, err := o.turn(ctx, req)
	if err != nil {
		metrics.RecordTurn(string(types.ClassifyError(err)), time.Since(start))
		callbacks.OnError(ctx, err)
		return nil, err
	}
	metrics.RecordTurn(string(resp.Kind), time.Since(start))
	callbacks.OnEnd(ctx, map[string]any{
		"response":  resp,
		"phase":     string(resp.Phase),
		"completed": resp.Completed,
	})
	return resp, nil
}

// turnScope is everything one turn reads and writes.
type turnScope struct {
	id      string
	message string
	state   *types.ConversationState
	view    *registry.TurnView
}

func (o *Orchestrator) turn(ctx context.Context, req *types.TurnRequest) (*types.Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, &types.TurnError{Kind: types.KindInput, Err: types.ErrEmptyMessage}
	}
	id := req.ConversationID
	if id == "" {
		id = o.newID()
	}

	unlock := o.locks.Lock(id)
	defer unlock()

	state, err := o.store.Get(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		state = types.NewConversationState(o.now())
		slog.Debug("Starting conversation", log.ConversationID(id))
	case err != nil:
		return nil, &types.TurnError{Kind: types.KindInternal, Err: fmt.Errorf("load state: %w", err)}
	default:
		state = state.Clone()
	}

	t := &turnScope{id: id, message: message, state: state, view: o.accessor.Turn()}
	slog.Debug("Processing turn", log.ConversationID(id), log.FlowID(state.FlowID), log.Phase(DerivePhase(state)))

	if state.Completed {
		return o.replayCompletion(ctx, t), nil
	}
	state.UpdatedAt = o.now()

	if state.FlowID == "" {
		if resp, err := o.resolveIntent(ctx, t); resp != nil || err != nil {
			return resp, err
		}
	} else if len(state.Missing) > 0 && !state.Confirmed {
		if resp, err := o.collectInputs(ctx, t); resp != nil || err != nil {
			return resp, err
		}
	}

	schema, err := o.schema(ctx, t, types.PhaseValidating)
	if err != nil {
		return nil, err
	}
	if resp, err := o.validateInputs(ctx, t, schema); resp != nil || err != nil {
		return resp, err
	}

	if !state.Confirmed {
		judgment, err := o.extractor.JudgeConfirmation(ctx, message, schema, state.Inputs)
		if err != nil {
			return nil, &types.TurnError{Kind: types.KindExtraction, Phase: types.PhaseAwaitingConfirmation, Err: err}
		}
		slog.Debug("Judged confirmation", log.ConversationID(id), slog.String("judgment", string(judgment)))
		if judgment != confirm.Confirmed {
			if err := o.persist(ctx, t); err != nil {
				return nil, err
			}
			return NeedConfirmation(id, state, schema), nil
		}
		state.Confirmed = true
	}

	result, err := t.view.Execute(ctx, state.FlowID, state.Inputs)
	metrics.RecordExecution(state.FlowID, metrics.Status(err))
	if err != nil {
		slog.Error("Flow execution failed", log.ConversationID(id), log.FlowID(state.FlowID), log.Error(err))
		return nil, registryError(types.PhaseExecuting, err)
	}
	state.Result = result
	state.Completed = true
	slog.Info("Flow executed", log.ConversationID(id), log.FlowID(state.FlowID))

	if err := o.persist(ctx, t); err != nil {
		return nil, err
	}
	return Completed(id, state, schema), nil
}

// resolveIntent returns a reply when the conversation must stop to ask for
// more information, and nil to continue with validation.
func (o *Orchestrator) resolveIntent(ctx context.Context, t *turnScope) (*types.Response, error) {
	phase := types.PhaseIntentUnresolved
	flows, err := t.view.ListFlows(ctx)
	if err != nil {
		return nil, registryError(phase, err)
	}
	res, err := o.extractor.RecognizeIntent(ctx, t.message, flows)
	if err != nil {
		return nil, &types.TurnError{Kind: types.KindExtraction, Phase: phase, Err: err}
	}
	if o.strictIntent && !listed(flows, res.Intent) {
		return nil, &types.TurnError{
			Kind:  types.KindExtraction,
			Phase: phase,
			Err:   fmt.Errorf("%w: %q", types.ErrUnknownIntent, res.Intent),
		}
	}
	slog.Debug("Recognized intent", log.ConversationID(t.id), log.FlowID(res.Intent), slog.Float64("confidence", res.Confidence))

	t.state.FlowID = res.Intent
	schema, err := o.schema(ctx, t, phase)
	if err != nil {
		return nil, err
	}
	if err := o.mergeExtracted(t, schema, res.Inputs, phase); err != nil {
		return nil, err
	}
	t.state.Missing = initialMissing(schema, res.Missing, t.state.Inputs)
	if len(t.state.Missing) == 0 {
		return nil, nil
	}
	if err := o.persist(ctx, t); err != nil {
		return nil, err
	}
	return NeedMoreInfo(t.id, t.state, schema, true), nil
}

func (o *Orchestrator) collectInputs(ctx context.Context, t *turnScope) (*types.Response, error) {
	phase := types.PhaseCollectingInputs
	schema, err := o.schema(ctx, t, phase)
	if err != nil {
		return nil, err
	}
	values, err := o.extractor.ExtractInputs(ctx, t.message, schema, schema.Fields(t.state.Missing))
	if err != nil {
		return nil, &types.TurnError{Kind: types.KindExtraction, Phase: phase, Err: err}
	}
	if err := o.mergeExtracted(t, schema, values, phase); err != nil {
		return nil, err
	}
	t.state.Missing = stillMissing(t.state.Missing, t.state.Inputs)
	if len(t.state.Missing) == 0 {
		return nil, nil
	}
	if err := o.persist(ctx, t); err != nil {
		return nil, err
	}
	return NeedMoreInfo(t.id, t.state, schema, false), nil
}

func (o *Orchestrator) validateInputs(ctx context.Context, t *turnScope, schema *types.FlowSchema) (*types.Response, error) {
	normalized, res := o.validator.Validate(ctx, schema, t.state.Inputs)
	t.state.Inputs = normalized
	if res.Valid {
		t.state.InvalidInputs = nil
		return nil, nil
	}
	slog.Debug("Validation failed", log.ConversationID(t.id), slog.Any("invalid", res.Invalid))
	metrics.RecordValidationFailures(t.state.FlowID, res.Invalid)

	t.state.InvalidInputs = res.Invalid
	t.state.Missing = requeueInvalid(schema, t.state.Missing, res.Invalid)
	if err := o.persist(ctx, t); err != nil {
		return nil, err
	}
	return InvalidInputs(t.id, t.state, schema, res.Invalid), nil
}

func (o *Orchestrator) mergeExtracted(t *turnScope, schema *types.FlowSchema, values map[string]any, phase types.Phase) error {
	extracted := validate.ApplyDefaults(schema, dropUnset(values))
	merged, err := mergeInputs(t.state.Inputs, extracted)
	if err != nil {
		return &types.TurnError{Kind: types.KindInternal, Phase: phase, Err: err}
	}
	t.state.Inputs = merged
	return nil
}

func (o *Orchestrator) schema(ctx context.Context, t *turnScope, phase types.Phase) (*types.FlowSchema, error) {
	schema, err := t.view.GetFlowSchema(ctx, t.state.FlowID)
	if err != nil {
		return nil, registryError(phase, err)
	}
	return schema, nil
}

// replayCompletion answers a finished conversation from its stored result.
// A registry outage only costs the flow name and output labels.
func (o *Orchestrator) replayCompletion(ctx context.Context, t *turnScope) *types.Response {
	schema, err := t.view.GetFlowSchema(ctx, t.state.FlowID)
	if err != nil {
		slog.Warn("Schema unavailable for completed conversation", log.ConversationID(t.id), log.FlowID(t.state.FlowID), log.Error(err))
		schema = &types.FlowSchema{ID: t.state.FlowID}
	}
	return Completed(t.id, t.state, schema)
}

func (o *Orchestrator) persist(ctx context.Context, t *turnScope) error {
	if err := o.store.Set(ctx, t.id, t.state); err != nil {
		return &types.TurnError{Kind: types.KindInternal, Phase: DerivePhase(t.state), Err: fmt.Errorf("save state: %w", err)}
	}
	return nil
}

// Reset forgets a conversation. It fails with ErrConversationNotFound when
// there is nothing to forget.
func (o *Orchestrator) Reset(ctx context.Context, id string) error {
	unlock := o.locks.Lock(id)
	defer unlock()

	ok, err := o.store.Has(ctx, id)
	if err != nil {
		return &types.TurnError{Kind: types.KindInternal, Err: err}
	}
	if !ok {
		return &types.TurnError{Kind: types.KindInput, Err: fmt.Errorf("%w: %s", types.ErrConversationNotFound, id)}
	}
	if err := o.store.Delete(ctx, id); err != nil {
		return &types.TurnError{Kind: types.KindInternal, Err: err}
	}
	slog.Info("Conversation reset", log.ConversationID(id))
	return nil
}

// State returns a copy of the stored conversation.
func (o *Orchestrator) State(ctx context.Context, id string) (*types.ConversationState, error) {
	state, err := o.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &types.TurnError{Kind: types.KindInput, Err: fmt.Errorf("%w: %s", types.ErrConversationNotFound, id)}
	}
	if err != nil {
		return nil, &types.TurnError{Kind: types.KindInternal, Err: err}
	}
	return state.Clone(), nil
}

func registryError(phase types.Phase, err error) error {
	if !errors.Is(err, types.ErrRegistry) {
		err = fmt.Errorf("%w: %w", types.ErrRegistry, err)
	}
	return &types.TurnError{Kind: types.KindRegistry, Phase: phase, Err: err}
}

func listed(flows []types.FlowSummary, id string) bool {
	for _, f := range flows {
		if f.ID == id {
			return true
		}
	}
	return false
}
