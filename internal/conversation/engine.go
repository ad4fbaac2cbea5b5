// Package conversation drives per-principal multi-step dialogs. A script is
// an ordered list of steps; the engine walks a principal through them one
// inbound message at a time, validating and storing each answer, and
// terminates with either the collected field set or a cancellation.
//
// The engine assumes the transport serializes events per principal (chat
// platforms deliver one update at a time per chat). Store implementations
// still save atomically, so a violated assumption corrupts at most one
// dialog, never the store.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"fixdesk/internal/conversation/models"
	dErrors "fixdesk/pkg/domain-errors"
	"fixdesk/pkg/platform/sentinel"
)

// CancelToken aborts the open dialog at any step, discarding collected
// fields.
const CancelToken = "/cancel"

// Step is one prompt in a script. Options, when set, turns the step into a
// fixed-choice step: the computed choices are rendered to the principal and
// the answer must be one of them. Validate, when set, runs after the choice
// check; a nil Validate on a free-text step means "non-empty".
//
// A Confirm step accepts exactly yes/no; no is equivalent to cancellation.
// Confirm steps carry no field key.
type Step struct {
	Field    string
	Prompt   string
	Options  func(ctx context.Context, fields map[string]string) ([]string, error)
	Validate func(ctx context.Context, fields map[string]string, input string) error
	Confirm  bool
}

// Script is a fixed ordered step definition a Conversation executes.
type Script struct {
	ID    string
	Steps []Step
}

// OutcomeKind classifies what Start/Advance produced.
type OutcomeKind string

const (
	// OutcomePrompt means the dialog moved to a step whose prompt (and
	// options, for choice steps) should be rendered.
	OutcomePrompt OutcomeKind = "prompt"
	// OutcomeRetry means validation failed; the same prompt is re-rendered
	// with Problem as the error annotation.
	OutcomeRetry OutcomeKind = "retry"
	// OutcomeCompleted means the last step was answered; Fields carries the
	// full collected set and the dialog is closed.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeCancelled means the dialog was aborted; collected fields are
	// discarded.
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the engine's answer to one inbound event.
type Outcome struct {
	Kind     OutcomeKind
	ScriptID string
	Prompt   string
	Options  []string
	Problem  string
	Fields   map[string]string
}

// Store persists open conversations keyed by principal.
type Store interface {
	Save(ctx context.Context, conv models.Conversation) error
	Find(ctx context.Context, principalID int64) (*models.Conversation, error)
	Delete(ctx context.Context, principalID int64) error
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine runs scripts against a conversation store.
type Engine struct {
	store   Store
	scripts map[string]Script
	logger  *slog.Logger
	now     func() time.Time
}

func New(store Store, scripts []Script, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		scripts: make(map[string]Script, len(scripts)),
		now:     time.Now,
	}
	for _, s := range scripts {
		e.scripts[s.ID] = s
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens a dialog at step 0, replacing any open dialog for the
// principal, and returns the first prompt.
func (e *Engine) Start(ctx context.Context, principalID int64, scriptID string) (*Outcome, error) {
	return e.StartWith(ctx, principalID, scriptID, nil)
}

// StartWith is Start with pre-collected fields. Callers use it to thread
// context a dialog needs but never asks for, such as the request id a
// resolution dialog belongs to.
func (e *Engine) StartWith(ctx context.Context, principalID int64, scriptID string, seed map[string]string) (*Outcome, error) {
	script, ok := e.scripts[scriptID]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown script %q", scriptID)
	}
	conv := models.Conversation{
		PrincipalID:     principalID,
		ScriptID:        script.ID,
		Step:            0,
		Fields:          make(map[string]string, len(script.Steps)+len(seed)),
		AwaitingConfirm: script.Steps[0].Confirm,
		StartedAt:       e.now(),
	}
	for k, v := range seed {
		conv.Fields[k] = v
	}
	if err := e.store.Save(ctx, conv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open conversation")
	}
	return e.render(ctx, script, conv, "")
}

// Current returns the open dialog snapshot for the principal, or NotFound.
// The transport uses it to decide whether an inbound event belongs to a
// dialog or to a direct menu action.
func (e *Engine) Current(ctx context.Context, principalID int64) (*models.Conversation, error) {
	conv, err := e.store.Find(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no open conversation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load conversation")
	}
	return conv, nil
}

// Advance feeds one answer to the open dialog. Validation failures keep the
// dialog on the same step and return a Retry outcome; the cancel token and
// a "no" on a confirmation step close the dialog with Cancelled; answering
// the last step closes it with Completed and the collected fields.
func (e *Engine) Advance(ctx context.Context, principalID int64, rawInput string) (*Outcome, error) {
	conv, err := e.store.Find(ctx, principalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no open conversation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load conversation")
	}
	script, ok := e.scripts[conv.ScriptID]
	if !ok {
		// Stale state from an older deployment; drop it rather than wedge
		// the principal.
		_ = e.store.Delete(ctx, principalID)
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown script %q", conv.ScriptID)
	}

	input := strings.TrimSpace(rawInput)
	if input == CancelToken {
		return e.cancel(ctx, conv)
	}

	step := script.Steps[conv.Step]
	if step.Confirm {
		switch strings.ToLower(input) {
		case "yes":
			// fall through to completion/advance below
		case "no":
			return e.cancel(ctx, conv)
		default:
			return e.render(ctx, script, *conv, "answer yes or no")
		}
	} else {
		if step.Options != nil {
			choices, err := step.Options(ctx, conv.Fields)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build choices")
			}
			if !slices.Contains(choices, input) {
				return e.render(ctx, script, *conv, "pick one of the offered options")
			}
		}
		validate := step.Validate
		if validate == nil {
			validate = nonEmpty
		}
		if err := validate(ctx, conv.Fields, input); err != nil {
			return e.render(ctx, script, *conv, err.Error())
		}
		conv.Fields[step.Field] = input
	}

	if conv.Step == len(script.Steps)-1 {
		if err := e.store.Delete(ctx, principalID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close conversation")
		}
		if e.logger != nil {
			e.logger.InfoContext(ctx, "conversation completed",
				slog.Int64("principal_id", principalID),
				slog.String("script_id", conv.ScriptID))
		}
		return &Outcome{Kind: OutcomeCompleted, ScriptID: conv.ScriptID, Fields: conv.Fields}, nil
	}

	conv.Step++
	conv.AwaitingConfirm = script.Steps[conv.Step].Confirm
	if err := e.store.Save(ctx, *conv); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save conversation")
	}
	return e.render(ctx, script, *conv, "")
}

func (e *Engine) cancel(ctx context.Context, conv *models.Conversation) (*Outcome, error) {
	if err := e.store.Delete(ctx, conv.PrincipalID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close conversation")
	}
	if e.logger != nil {
		e.logger.InfoContext(ctx, "conversation cancelled",
			slog.Int64("principal_id", conv.PrincipalID),
			slog.String("script_id", conv.ScriptID))
	}
	return &Outcome{Kind: OutcomeCancelled, ScriptID: conv.ScriptID}, nil
}

// render produces the prompt outcome for the conversation's current step.
// A non-empty problem marks it as a validation retry.
func (e *Engine) render(ctx context.Context, script Script, conv models.Conversation, problem string) (*Outcome, error) {
	step := script.Steps[conv.Step]
	out := &Outcome{
		Kind:     OutcomePrompt,
		ScriptID: script.ID,
		Prompt:   step.Prompt,
		Problem:  problem,
	}
	if problem != "" {
		out.Kind = OutcomeRetry
	}
	if step.Options != nil {
		choices, err := step.Options(ctx, conv.Fields)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build choices")
		}
		out.Options = choices
	}
	return out, nil
}
