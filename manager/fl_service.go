package manager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/absmach/secagg/manager/metrics"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Submit validates, decrypts and buffers a submission. The submission whose
// arrival fills the buffer drains it and runs the aggregation.
func (svc *service) Submit(ctx context.Context, sub fl.Submission) (fl.Outcome, error) {
	if err := validateSubmission(sub); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()

		return fl.Outcome{}, err
	}

	submissionID := uuid.NewString()
	logger := svc.logger.With(
		slog.String("submission_id", submissionID),
		slog.String("client_id", sub.ClientID),
		slog.Int("round", sub.Round),
		slog.Uint64("model_version", sub.ModelVersion),
	)

	svc.mu.RLock()
	current, closed := svc.model.Version, svc.aggregating
	svc.mu.RUnlock()

	if err := checkVersion(sub.ModelVersion, current, closed); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("conflict").Inc()
		logger.WarnContext(ctx, "Rejected stale submission", slog.Uint64("current_version", current))

		return fl.Outcome{}, err
	}

	start := time.Now()
	weights, err := svc.recoverer.Recover(sub.EncryptedShares)
	metrics.RecoverDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if pkgerrors.Contains(err, pkgerrors.ErrCrypto) {
			metrics.CryptoFailures.Inc()
			metrics.SubmissionsTotal.WithLabelValues("crypto_error").Inc()
			logger.ErrorContext(ctx, "Rejected submission: share decryption failed", slog.Int("num_shares", len(sub.EncryptedShares)), slog.Any("error", err))

			return fl.Outcome{}, err
		}
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		logger.WarnContext(ctx, "Rejected submission: shares could not be combined", slog.Any("error", err))

		return fl.Outcome{}, err
	}

	if len(weights) != svc.dim {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		logger.WarnContext(ctx, "Rejected submission: dimension mismatch", slog.Int("got", len(weights)), slog.Int("want", svc.dim))

		return fl.Outcome{}, pkgerrors.Wrap(pkgerrors.ErrAggregationPrecondition, fmt.Errorf("update has %d coordinates, model has %d", len(weights), svc.dim))
	}

	contribution := fl.Contribution{
		SubmissionID: submissionID,
		ClientID:     sub.ClientID,
		Round:        sub.Round,
		NumSamples:   sub.NumSamples,
		Loss:         sub.Loss,
		ModelVersion: sub.ModelVersion,
		Weights:      weights,
		ReceivedAt:   time.Now().UTC(),
	}

	svc.mu.Lock()
	if err := checkVersion(sub.ModelVersion, svc.model.Version, svc.aggregating); err != nil {
		current := svc.model.Version
		svc.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues("conflict").Inc()
		logger.WarnContext(ctx, "Rejected stale submission", slog.Uint64("current_version", current))

		return fl.Outcome{}, err
	}

	svc.buffer = append(svc.buffer, contribution)
	received := len(svc.buffer)
	if received < svc.goal {
		version := svc.model.Version
		metrics.BufferedContributions.Set(float64(received))
		svc.mu.Unlock()

		metrics.SubmissionsTotal.WithLabelValues("buffered").Inc()
		logger.InfoContext(ctx, "Buffered contribution", slog.Int("received", received), slog.Int("goal", svc.goal))

		return fl.Outcome{
			Kind:         fl.OutcomeBuffered,
			SubmissionID: submissionID,
			Received:     received,
			Needed:       svc.goal - received,
			ModelVersion: version,
		}, nil
	}

	batch := svc.buffer
	svc.buffer = make([]fl.Contribution, 0, svc.goal)
	svc.aggregating = true
	base := svc.model.Version
	metrics.BufferedContributions.Set(0)
	svc.mu.Unlock()

	metrics.SubmissionsTotal.WithLabelValues("aggregated").Inc()
	logger.InfoContext(ctx, "Aggregation goal reached", slog.Int("goal", svc.goal))

	return svc.aggregateAndAdvance(ctx, logger, submissionID, base, batch)
}

// aggregateAndAdvance combines a drained batch outside the lock and installs
// the result as version base+1.
func (svc *service) aggregateAndAdvance(ctx context.Context, logger *slog.Logger, submissionID string, base uint64, batch []fl.Contribution) (fl.Outcome, error) {
	clients := clientIDs(batch)

	start := time.Now()
	agg, err := svc.aggregator.Aggregate(batch)
	if err == nil && len(agg.Weights) != svc.dim {
		err = pkgerrors.Wrap(pkgerrors.ErrAggregationPrecondition, fmt.Errorf("aggregate has %d coordinates, model has %d", len(agg.Weights), svc.dim))
	}
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		svc.mu.Lock()
		svc.aggregating = false
		svc.mu.Unlock()

		metrics.AggregationsTotal.WithLabelValues("failed").Inc()
		logger.ErrorContext(ctx, "Aggregation failed, batch discarded",
			slog.Uint64("base_version", base),
			slog.Any("clients", clients),
			slog.Any("error", err))

		if !pkgerrors.Contains(err, pkgerrors.ErrAggregationPrecondition) {
			err = pkgerrors.Wrap(pkgerrors.ErrAggregationPrecondition, err)
		}

		return fl.Outcome{}, err
	}

	next := fl.Model{
		Version:      base + 1,
		Weights:      agg.Weights,
		NumClients:   agg.NumClients,
		TotalSamples: agg.TotalSamples,
		MeanLoss:     agg.MeanLoss,
		UpdatedAt:    time.Now().UTC(),
	}

	svc.mu.Lock()
	svc.install(next)
	svc.aggregating = false
	svc.mu.Unlock()

	metrics.AggregationsTotal.WithLabelValues("success").Inc()
	metrics.ModelVersion.Set(float64(next.Version))
	logger.InfoContext(ctx, "Global model updated",
		slog.Uint64("new_version", next.Version),
		slog.Int("num_clients", agg.NumClients),
		slog.Int("total_samples", agg.TotalSamples),
		slog.Float64("mean_loss", agg.MeanLoss))

	if svc.publisher != nil {
		event := fl.AggregationEvent{
			ModelVersion: next.Version,
			NumClients:   agg.NumClients,
			TotalSamples: agg.TotalSamples,
			MeanLoss:     agg.MeanLoss,
			ClientIDs:    clients,
			AggregatedAt: next.UpdatedAt,
		}
		if err := svc.publisher.PublishAggregation(ctx, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish aggregation event", slog.Any("error", err))
		}
	}

	out := next.Clone()

	return fl.Outcome{
		Kind:         fl.OutcomeAggregated,
		SubmissionID: submissionID,
		Received:     len(batch),
		ModelVersion: out.Version,
		Weights:      out.Weights,
	}, nil
}

// SubmitCBOR decodes a CBOR encoded submission and submits it.
func SubmitCBOR(ctx context.Context, svc Service, data []byte) (fl.Outcome, error) {
	var sub fl.Submission
	if err := cbor.Unmarshal(data, &sub); err != nil {
		return fl.Outcome{}, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("failed to decode CBOR submission: %w", err))
	}

	return svc.Submit(ctx, sub)
}

func validateSubmission(sub fl.Submission) error {
	switch {
	case len(sub.EncryptedShares) == 0:
		return pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("model_weights is empty"))
	case sub.NumSamples <= 0:
		return pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("num_samples must be positive, got %d", sub.NumSamples))
	}

	return nil
}

func checkVersion(submitted, current uint64, aggregating bool) error {
	switch {
	case submitted != current:
		return pkgerrors.Wrap(pkgerrors.ErrVersionConflict, fmt.Errorf("submitted against version %d, current is %d", submitted, current))
	case aggregating:
		return pkgerrors.Wrap(pkgerrors.ErrVersionConflict, fmt.Errorf("version %d is being aggregated", current))
	}

	return nil
}

func clientIDs(batch []fl.Contribution) []string {
	ids := make([]string, 0, len(batch))
	for _, c := range batch {
		id := c.ClientID
		if id == "" {
			id = c.SubmissionID
		}
		ids = append(ids, id)
	}

	return ids
}
