package api

import (
	"net/http"
	"time"

	"github.com/absmach/secagg/pkg/fl"
)

const (
	msgWaiting = "waiting for more updates"
	msgUpdated = "global model updated"
)

// Response is implemented by every endpoint response.
type Response interface {
	Code() int
}

type weightsDTO struct {
	Weights []float64 `json:"weights"`
}

type modelRes struct {
	ModelState   weightsDTO `json:"model_state"`
	ModelVersion uint64     `json:"model_version"`
}

func (modelRes) Code() int { return http.StatusOK }

type submitRes struct {
	Message           string      `json:"message"`
	SubmissionID      string      `json:"submission_id,omitempty"`
	Received          int         `json:"received,omitempty"`
	Needed            int         `json:"needed,omitempty"`
	AggregatedWeights *weightsDTO `json:"aggregated_weights,omitempty"`
	ModelVersion      uint64      `json:"model_version"`
}

func (submitRes) Code() int { return http.StatusOK }

func newSubmitRes(out fl.Outcome) submitRes {
	res := submitRes{
		SubmissionID: out.SubmissionID,
		Received:     out.Received,
		ModelVersion: out.ModelVersion,
	}
	switch out.Kind {
	case fl.OutcomeAggregated:
		res.Message = msgUpdated
		res.AggregatedWeights = &weightsDTO{Weights: out.Weights}
	default:
		res.Message = msgWaiting
		res.Needed = out.Needed
	}

	return res
}

type statusRes struct {
	fl.Status
}

func (statusRes) Code() int { return http.StatusOK }

type listModelsRes struct {
	Versions []uint64 `json:"versions"`
	Total    int      `json:"total"`
}

func (listModelsRes) Code() int { return http.StatusOK }

type viewModelRes struct {
	ModelVersion uint64    `json:"model_version"`
	Weights      []float64 `json:"weights"`
	NumClients   int       `json:"num_clients"`
	TotalSamples int       `json:"total_samples"`
	MeanLoss     float64   `json:"mean_loss"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (viewModelRes) Code() int { return http.StatusOK }

type healthRes struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
}

func (healthRes) Code() int { return http.StatusOK }

type errorRes struct {
	Err string `json:"error"`
}
