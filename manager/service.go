package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/secagg/manager/metrics"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
)

const defHistory = 10

// Service is the aggregation server: the only owner of the global model, its
// version and the buffer of pending contributions.
type Service interface {
	// GetModel returns a consistent snapshot of the current global model.
	GetModel(ctx context.Context) (fl.Model, error)

	// Submit buffers a client submission and runs an aggregation cycle when
	// the aggregation goal is reached.
	Submit(ctx context.Context, sub fl.Submission) (fl.Outcome, error)

	Status(ctx context.Context) (fl.Status, error)

	// ListModels returns the versions kept in the model history, oldest first.
	ListModels(ctx context.Context) ([]uint64, error)

	GetModelVersion(ctx context.Context, version uint64) (fl.Model, error)
}

// Recoverer decrypts a submission's shares and reconstructs the client's vector.
type Recoverer interface {
	Recover(encrypted []string) ([]float64, error)
}

// Publisher announces newly installed global models.
type Publisher interface {
	PublishAggregation(ctx context.Context, event fl.AggregationEvent) error
}

type Config struct {
	// AggregationGoal is the number of contributions that triggers one aggregation.
	AggregationGoal int
	ModelDim        int
	// InitialWeights seeds version 0. Zeros of length ModelDim when empty.
	InitialWeights []float64
	// History is the number of installed models retained, current included.
	History int
}

func (c Config) validate() error {
	if c.AggregationGoal < 1 {
		return pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("aggregation goal must be positive, got %d", c.AggregationGoal))
	}
	if c.ModelDim < 1 && len(c.InitialWeights) == 0 {
		return pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("model dimension must be positive, got %d", c.ModelDim))
	}
	if c.ModelDim > 0 && len(c.InitialWeights) > 0 && len(c.InitialWeights) != c.ModelDim {
		return pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("initial weights have %d coordinates, model dimension is %d", len(c.InitialWeights), c.ModelDim))
	}

	return nil
}

type service struct {
	goal       int
	dim        int
	maxHistory int
	recoverer  Recoverer
	aggregator fl.Aggregator
	publisher  Publisher
	logger     *slog.Logger

	// mu guards model, buffer, aggregating and history.
	mu          sync.RWMutex
	model       fl.Model
	buffer      []fl.Contribution
	aggregating bool
	history     []fl.Model
}

// NewService returns the aggregation server state. publisher may be nil.
func NewService(cfg Config, recoverer Recoverer, aggregator fl.Aggregator, publisher Publisher, logger *slog.Logger) (Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if recoverer == nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("share recoverer is required"))
	}
	if aggregator == nil {
		aggregator = fl.NewFedAvgAggregator()
	}
	if logger == nil {
		logger = slog.Default()
	}

	weights := make([]float64, cfg.ModelDim)
	if len(cfg.InitialWeights) > 0 {
		weights = make([]float64, len(cfg.InitialWeights))
		copy(weights, cfg.InitialWeights)
	}

	maxHistory := cfg.History
	if maxHistory <= 0 {
		maxHistory = defHistory
	}

	initial := fl.Model{
		Version:   0,
		Weights:   weights,
		UpdatedAt: time.Now().UTC(),
	}

	metrics.ModelVersion.Set(0)
	metrics.BufferedContributions.Set(0)

	return &service{
		goal:       cfg.AggregationGoal,
		dim:        len(weights),
		maxHistory: maxHistory,
		recoverer:  recoverer,
		aggregator: aggregator,
		publisher:  publisher,
		logger:     logger,
		model:      initial,
		buffer:     make([]fl.Contribution, 0, cfg.AggregationGoal),
		history:    []fl.Model{initial},
	}, nil
}

func (svc *service) GetModel(ctx context.Context) (fl.Model, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return svc.model.Clone(), nil
}

func (svc *service) Status(ctx context.Context) (fl.Status, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	return fl.Status{
		ModelVersion:    svc.model.Version,
		Buffered:        len(svc.buffer),
		AggregationGoal: svc.goal,
		Aggregating:     svc.aggregating,
		ModelDim:        svc.dim,
	}, nil
}

func (svc *service) ListModels(ctx context.Context) ([]uint64, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	versions := make([]uint64, 0, len(svc.history))
	for _, m := range svc.history {
		versions = append(versions, m.Version)
	}

	return versions, nil
}

func (svc *service) GetModelVersion(ctx context.Context, version uint64) (fl.Model, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	for _, m := range svc.history {
		if m.Version == version {
			return m.Clone(), nil
		}
	}

	return fl.Model{}, pkgerrors.Wrap(pkgerrors.ErrNotFound, fmt.Errorf("model version %d is not retained", version))
}

// install replaces the global model and records it in the history. Callers hold mu.
func (svc *service) install(m fl.Model) {
	svc.model = m
	svc.history = append(svc.history, m)
	if over := len(svc.history) - svc.maxHistory; over > 0 {
		svc.history = append([]fl.Model(nil), svc.history[over:]...)
	}
}
