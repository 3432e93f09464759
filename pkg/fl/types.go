package fl

import "time"

// Submission is the body a client posts at the end of a round. Each entry of
// EncryptedShares is one shareholder's encrypted share of the noised update.
type Submission struct {
	EncryptedShares []string `json:"model_weights" cbor:"model_weights"`
	NumSamples      int      `json:"num_samples" cbor:"num_samples"`
	Loss            float64  `json:"loss" cbor:"loss"`
	ModelVersion    uint64   `json:"model_version" cbor:"model_version"`
	ClientID        string   `json:"client_id,omitempty" cbor:"client_id,omitempty"`
	Round           int      `json:"round,omitempty" cbor:"round,omitempty"`
}

// Contribution is a submission whose shares have been decrypted and
// reconstructed into the client's noised weight vector.
type Contribution struct {
	SubmissionID string
	ClientID     string
	Round        int
	NumSamples   int
	Loss         float64
	ModelVersion uint64
	Weights      []float64
	ReceivedAt   time.Time
}

// Model is a snapshot of the global model.
type Model struct {
	Version      uint64    `json:"model_version"`
	Weights      []float64 `json:"weights"`
	NumClients   int       `json:"num_clients,omitempty"`
	TotalSamples int       `json:"total_samples,omitempty"`
	MeanLoss     float64   `json:"mean_loss,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy of m.
func (m Model) Clone() Model {
	c := m
	c.Weights = make([]float64, len(m.Weights))
	copy(c.Weights, m.Weights)

	return c
}

// Aggregate is the result of combining one batch of contributions.
type Aggregate struct {
	Weights      []float64
	NumClients   int
	TotalSamples int
	MeanLoss     float64
}

type Aggregator interface {
	Aggregate(contributions []Contribution) (Aggregate, error)
}

type OutcomeKind string

const (
	OutcomeBuffered   OutcomeKind = "buffered"
	OutcomeAggregated OutcomeKind = "aggregated"
)

// Outcome reports what happened to an accepted submission.
type Outcome struct {
	Kind         OutcomeKind
	SubmissionID string
	Received     int
	Needed       int
	ModelVersion uint64
	Weights      []float64
}

// Status describes the manager's aggregation progress.
type Status struct {
	ModelVersion    uint64 `json:"model_version"`
	Buffered        int    `json:"buffered"`
	AggregationGoal int    `json:"aggregation_goal"`
	Aggregating     bool   `json:"aggregating"`
	ModelDim        int    `json:"model_dim"`
}

// AggregationEvent is published after a new global model is installed.
type AggregationEvent struct {
	ModelVersion uint64    `json:"model_version"`
	NumClients   int       `json:"num_clients"`
	TotalSamples int       `json:"total_samples"`
	MeanLoss     float64   `json:"mean_loss"`
	ClientIDs    []string  `json:"client_ids,omitempty"`
	AggregatedAt time.Time `json:"aggregated_at"`
}
