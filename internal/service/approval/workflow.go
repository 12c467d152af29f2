// Package approval runs a status change through the same steps for every approval domain:
// required reason, validator against the locally known status, confirmation for destructive
// targets, an optional preparatory step, the mutation, then a re-read of the affected
// aggregate. The re-read is the consistency model: local copies are never patched in place.
package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/schoolhealth/internal/confirm"
	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/transition"
	"github.com/jwalitptl/schoolhealth/pkg/errors"
	"github.com/jwalitptl/schoolhealth/pkg/messaging"
	"github.com/jwalitptl/schoolhealth/pkg/metrics"
)

// Step names reported in partial-failure errors.
const (
	StepPrepare = "preparation"
	StepMutate  = "status update"
	StepRefresh = "reload"
)

// Change is one requested status mutation.
type Change[S transition.Status] struct {
	ID string
	// Parent identifies the aggregate re-read after the mutation, if any.
	Parent string
	Target S
	Reason string
	// Evidence is handed to Prepare untouched.
	Evidence *model.Evidence
}

// Hooks bind a workflow to one entity type.
type Hooks[S transition.Status] struct {
	// Current returns the locally known status of the entity.
	Current func(ctx context.Context, actor model.ActorContext, change Change[S]) (S, error)
	// Prepare runs after confirmation and before Mutate when the change carries evidence.
	Prepare func(ctx context.Context, actor model.ActorContext, change Change[S]) error
	// Mutate issues the single backend call.
	Mutate func(ctx context.Context, actor model.ActorContext, change Change[S]) error
	// Refresh invalidates and re-reads the minimal affected aggregate.
	Refresh func(ctx context.Context, actor model.ActorContext, change Change[S]) error
}

type Workflow[S transition.Status] struct {
	rules       *transition.Rules[S]
	domain      string
	hooks       Hooks[S]
	reasonMsg   string
	prepareStep string
	publisher   messaging.Publisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

type Option[S transition.Status] func(*Workflow[S])

// WithReasonMessage overrides the message shown when the reason is blank.
func WithReasonMessage[S transition.Status](msg string) Option[S] {
	return func(w *Workflow[S]) { w.reasonMsg = msg }
}

// WithDomain labels events, metrics and logs. Defaults to the rules' domain.
func WithDomain[S transition.Status](name string) Option[S] {
	return func(w *Workflow[S]) { w.domain = name }
}

// WithPrepareStep names the Prepare hook in partial-failure messages.
func WithPrepareStep[S transition.Status](name string) Option[S] {
	return func(w *Workflow[S]) { w.prepareStep = name }
}

func WithPublisher[S transition.Status](p messaging.Publisher) Option[S] {
	return func(w *Workflow[S]) { w.publisher = p }
}

func WithMetrics[S transition.Status](m *metrics.Metrics) Option[S] {
	return func(w *Workflow[S]) { w.metrics = m }
}

func WithLogger[S transition.Status](l zerolog.Logger) Option[S] {
	return func(w *Workflow[S]) { w.logger = l }
}

func New[S transition.Status](rules *transition.Rules[S], hooks Hooks[S], opts ...Option[S]) *Workflow[S] {
	w := &Workflow[S]{
		rules:       rules,
		domain:      rules.Domain(),
		hooks:       hooks,
		reasonMsg:   "reason is required",
		prepareStep: StepPrepare,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("domain", w.domain).Logger()
	return w
}

// Apply runs the change. confirmer is consulted only for destructive targets.
// Nothing is sent to the backend unless every local check passes.
func (w *Workflow[S]) Apply(ctx context.Context, actor model.ActorContext, change Change[S], confirmer confirm.Confirmer) error {
	domain := w.domain

	if strings.TrimSpace(change.ID) == "" {
		return errors.Validation(fmt.Sprintf("%s id is required", domain))
	}
	if strings.TrimSpace(change.Reason) == "" {
		return errors.Validation(w.reasonMsg)
	}
	if !change.Target.Valid() {
		return errors.Validation(fmt.Sprintf("unknown %s status %q", domain, change.Target.String()))
	}

	current, err := w.hooks.Current(ctx, actor, change)
	if err != nil {
		return err
	}

	if err := w.rules.Check(current, change.Target); err != nil {
		w.count(func(m *metrics.Metrics) {
			m.TransitionsRejected.WithLabelValues(domain, current.String(), change.Target.String()).Inc()
		})
		w.logger.Info().Str("id", change.ID).Str("from", current.String()).Str("to", change.Target.String()).Msg("transition blocked")
		return err
	}

	if w.rules.Destructive(change.Target) {
		if confirmer == nil {
			confirmer = confirm.Deny
		}
		prompt := confirm.Prompt{
			Action:  "set " + change.Target.String(),
			Subject: domain + " " + change.ID,
			Message: fmt.Sprintf("Moving %s %s to %s cannot be undone.", domain, change.ID, change.Target.String()),
		}
		if err := confirmer.Confirm(ctx, prompt); err != nil {
			w.count(func(m *metrics.Metrics) {
				m.ConfirmationsNeeded.WithLabelValues(domain, outcomeOf(err)).Inc()
			})
			return err
		}
		w.count(func(m *metrics.Metrics) { m.ConfirmationsNeeded.WithLabelValues(domain, "acknowledged").Inc() })
	}

	prepared := w.hooks.Prepare != nil && change.Evidence != nil
	if prepared {
		if err := w.hooks.Prepare(ctx, actor, change); err != nil {
			w.count(func(m *metrics.Metrics) { m.MutationsApplied.WithLabelValues(domain, "prepare_failed").Inc() })
			w.logger.Warn().Err(err).Str("id", change.ID).Msg("preparatory step failed, status left unchanged")
			return errors.AtStep(w.prepareStep, err)
		}
	}

	if err := w.hooks.Mutate(ctx, actor, change); err != nil {
		w.count(func(m *metrics.Metrics) { m.MutationsApplied.WithLabelValues(domain, "failed").Inc() })
		if prepared {
			return errors.AtStep(StepMutate, err)
		}
		return err
	}
	w.count(func(m *metrics.Metrics) { m.MutationsApplied.WithLabelValues(domain, "applied").Inc() })

	if w.publisher != nil {
		evt := messaging.NewActionEvent(domain, change.ID, current.String(), change.Target.String(), actor.ActorID, change.Reason)
		evt.Parent = change.Parent
		evt.ActorKey = actor.Key()
		if err := w.publisher.PublishAction(ctx, evt); err != nil {
			w.logger.Warn().Err(err).Str("id", change.ID).Msg("failed to publish action event")
		}
	}

	if w.hooks.Refresh != nil {
		if err := w.hooks.Refresh(ctx, actor, change); err != nil {
			return errors.AtStep(StepRefresh, err)
		}
	}
	return nil
}

func (w *Workflow[S]) Rules() *transition.Rules[S] { return w.rules }

func (w *Workflow[S]) count(fn func(*metrics.Metrics)) {
	if w.metrics != nil {
		fn(w.metrics)
	}
}

func outcomeOf(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrConfirmationRequired:
		return "pending"
	case errors.ErrNotConfirmed:
		return "declined"
	}
	return "error"
}
