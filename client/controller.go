package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "github.com/absmach/secagg/client"
	defRetryInterval = 5 * time.Second
)

// Protector turns a trained weight vector into encrypted shares.
type Protector interface {
	Protect(weights []float64) ([]string, error)
}

// RoundResult summarises one round.
type RoundResult struct {
	Round int
	// State is the state the round ended in: Accepted, Retrying or Failed.
	State State
	// BaseVersion is the model version the update was computed against.
	BaseVersion uint64
	// ModelVersion is the server's version reported on acceptance.
	ModelVersion uint64
	Aggregated   bool
	Loss         float64
	NumSamples   int
}

type Option func(*Controller)

func WithRetryInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.retryInterval = d
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = t
	}
}

// Controller drives the rounds of a single client. It is not safe for
// concurrent use; rounds are strictly sequential.
type Controller struct {
	sdk           SDK
	trainer       Trainer
	protector     Protector
	clientID      string
	logger        *slog.Logger
	tracer        trace.Tracer
	retryInterval time.Duration

	state State
}

func NewController(sdk SDK, trainer Trainer, protector Protector, clientID string, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		sdk:           sdk,
		trainer:       trainer,
		protector:     protector,
		clientID:      clientID,
		logger:        logger.With(slog.String("client_id", clientID)),
		tracer:        otel.Tracer(tracerName),
		retryInterval: defRetryInterval,
		state:         Idle,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) transition(to State) error {
	if !ValidateTransition(c.state, to) {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidTransition, fmt.Errorf("%s -> %s", c.state, to))
	}
	c.state = to

	return nil
}

// RunRound runs one round from Fetching until it is Accepted, Retrying or
// Failed. A version conflict is not an error: the stale update is dropped and
// the next round fetches the newer model.
func (c *Controller) RunRound(ctx context.Context, round int) (RoundResult, error) {
	ctx, span := c.tracer.Start(ctx, "client.round", trace.WithAttributes(
		attribute.Int("round", round),
		attribute.String("client_id", c.clientID),
	))
	defer span.End()

	res := RoundResult{Round: round}
	logger := c.logger.With(slog.Int("round", round))

	if err := c.transition(Fetching); err != nil {
		return res, err
	}

	var (
		model   fl.Model
		trained TrainResult
		sealed  []string
	)

	for !IsRoundEnd(c.state) {
		step := c.state
		stepCtx, stepSpan := c.tracer.Start(ctx, "client."+step.String())

		var (
			next State
			err  error
		)
		switch step {
		case Fetching:
			model, err = c.sdk.GetModel(stepCtx)
			if err == nil {
				res.BaseVersion = model.Version
				next = Training
			}

		case Training:
			trained, err = c.trainer.Train(stepCtx, model)
			if err == nil {
				res.Loss, res.NumSamples = trained.Loss, trained.NumSamples
				next = Protecting
			}

		case Protecting:
			sealed, err = c.protector.Protect(trained.Weights)
			if err == nil {
				next = Submitting
			}

		case Submitting:
			var sr SubmitResult
			sr, err = c.sdk.SubmitUpdate(stepCtx, fl.Submission{
				EncryptedShares: sealed,
				NumSamples:      trained.NumSamples,
				Loss:            trained.Loss,
				ModelVersion:    model.Version,
				ClientID:        c.clientID,
				Round:           round,
			})
			switch {
			case err == nil:
				res.ModelVersion, res.Aggregated = sr.ModelVersion, sr.Aggregated
				next = Accepted
			case pkgerrors.Contains(err, pkgerrors.ErrVersionConflict):
				logger.WarnContext(ctx, "Update computed against a superseded model, discarding",
					slog.Uint64("base_version", model.Version),
					slog.Any("error", err))
				err = nil
				next = Retrying
			}
		}

		if err != nil {
			stepSpan.RecordError(err)
			stepSpan.SetStatus(codes.Error, err.Error())
			stepSpan.End()
			span.SetStatus(codes.Error, err.Error())

			logger.ErrorContext(ctx, "Round aborted",
				slog.String("step", step.String()),
				slog.Uint64("base_version", res.BaseVersion),
				slog.Any("error", err))

			if terr := c.transition(Failed); terr != nil {
				return res, terr
			}
			res.State = Failed
			if step == Fetching && !pkgerrors.Contains(err, pkgerrors.ErrTransport) {
				err = pkgerrors.Wrap(pkgerrors.ErrTransport, err)
			}

			return res, err
		}

		stepSpan.End()
		if err := c.transition(next); err != nil {
			return res, err
		}
	}

	res.State = c.state
	span.SetAttributes(attribute.String("state", c.state.String()))

	if c.state == Accepted {
		logger.InfoContext(ctx, "Round accepted",
			slog.Uint64("base_version", res.BaseVersion),
			slog.Uint64("model_version", res.ModelVersion),
			slog.Bool("aggregated", res.Aggregated),
			slog.Float64("loss", res.Loss),
			slog.Int("num_samples", res.NumSamples))
	}

	return res, nil
}

// Run executes rounds sequentially. A failed round is logged and the next one
// starts after the retry interval from a freshly fetched model. Run returns the
// last round error when the final round failed or no round was accepted; it
// stops early only on cancellation or an invalid state transition.
func (c *Controller) Run(ctx context.Context, rounds int) error {
	if rounds < 1 {
		return pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("rounds must be positive, got %d", rounds))
	}

	var (
		accepted int
		lastErr  error
		failed   bool
	)
	for round := 1; round <= rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := c.RunRound(ctx, round)
		failed = err != nil
		if err == nil {
			if res.State == Accepted {
				accepted++
			}

			continue
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if pkgerrors.Contains(err, pkgerrors.ErrInvalidTransition) {
			return err
		}
		lastErr = err

		c.logger.WarnContext(ctx, "Round failed, continuing with the next round",
			slog.Int("round", round),
			slog.Duration("retry_interval", c.retryInterval),
			slog.Any("error", err))
		if round == rounds {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}

	if failed || (accepted == 0 && lastErr != nil) {
		c.logger.ErrorContext(ctx, "Training finished with errors",
			slog.Int("rounds", rounds),
			slog.Int("accepted", accepted),
			slog.Any("error", lastErr))

		return lastErr
	}

	c.logger.InfoContext(ctx, "Training finished", slog.Int("rounds", rounds), slog.Int("accepted", accepted))

	return nil
}
