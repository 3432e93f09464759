package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
	"github.com/fxamacker/cbor/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	getModelPath   = "/get_model"
	updatePath     = "/update_model"
	updateCBORPath = "/update_model_cbor"
	statusPath     = "/status"
	modelsPath     = "/models"

	defTimeout = 30 * time.Second
)

// SDK is the client's view of the aggregation server.
type SDK interface {
	GetModel(ctx context.Context) (fl.Model, error)
	SubmitUpdate(ctx context.Context, sub fl.Submission) (SubmitResult, error)
	Status(ctx context.Context) (fl.Status, error)
	Models(ctx context.Context) ([]uint64, error)
	ModelByVersion(ctx context.Context, version uint64) (fl.Model, error)
}

// SubmitResult is the server's answer to an accepted submission.
type SubmitResult struct {
	Message      string
	SubmissionID string
	Aggregated   bool
	Received     int
	Needed       int
	ModelVersion uint64
	Weights      []float64
}

type SDKConfig struct {
	ServerURL string
	Timeout   time.Duration
	// CBOR posts submissions to the CBOR endpoint.
	CBOR bool
}

type HTTPSDK struct {
	baseURL string
	cbor    bool
	client  *http.Client
}

var _ SDK = (*HTTPSDK)(nil)

func NewHTTPSDK(cfg SDKConfig) (*HTTPSDK, error) {
	if cfg.ServerURL == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrConfiguration, fmt.Errorf("server URL is required"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defTimeout
	}

	return &HTTPSDK{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		cbor:    cfg.CBOR,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type weightsBody struct {
	Weights []float64 `json:"weights"`
}

type modelBody struct {
	ModelState   weightsBody `json:"model_state"`
	ModelVersion uint64      `json:"model_version"`
}

type submitBody struct {
	Message           string       `json:"message"`
	SubmissionID      string       `json:"submission_id"`
	Received          int          `json:"received"`
	Needed            int          `json:"needed"`
	AggregatedWeights *weightsBody `json:"aggregated_weights"`
	ModelVersion      uint64       `json:"model_version"`
}

type modelsBody struct {
	Versions []uint64 `json:"versions"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (sdk *HTTPSDK) GetModel(ctx context.Context) (fl.Model, error) {
	var body modelBody
	if err := sdk.do(ctx, http.MethodGet, getModelPath, "", nil, &body); err != nil {
		return fl.Model{}, err
	}

	return fl.Model{Version: body.ModelVersion, Weights: body.ModelState.Weights}, nil
}

func (sdk *HTTPSDK) SubmitUpdate(ctx context.Context, sub fl.Submission) (SubmitResult, error) {
	path, contentType := updatePath, "application/json"
	marshal := json.Marshal
	if sdk.cbor {
		path, contentType = updateCBORPath, "application/cbor"
		marshal = cbor.Marshal
	}

	data, err := marshal(sub)
	if err != nil {
		return SubmitResult{}, pkgerrors.Wrap(pkgerrors.ErrInvalidData, err)
	}

	var body submitBody
	if err := sdk.do(ctx, http.MethodPost, path, contentType, data, &body); err != nil {
		return SubmitResult{}, err
	}

	res := SubmitResult{
		Message:      body.Message,
		SubmissionID: body.SubmissionID,
		Received:     body.Received,
		Needed:       body.Needed,
		ModelVersion: body.ModelVersion,
	}
	if body.AggregatedWeights != nil {
		res.Aggregated = true
		res.Weights = body.AggregatedWeights.Weights
	}

	return res, nil
}

func (sdk *HTTPSDK) Status(ctx context.Context) (fl.Status, error) {
	var st fl.Status
	if err := sdk.do(ctx, http.MethodGet, statusPath, "", nil, &st); err != nil {
		return fl.Status{}, err
	}

	return st, nil
}

func (sdk *HTTPSDK) Models(ctx context.Context) ([]uint64, error) {
	var body modelsBody
	if err := sdk.do(ctx, http.MethodGet, modelsPath, "", nil, &body); err != nil {
		return nil, err
	}

	return body.Versions, nil
}

func (sdk *HTTPSDK) ModelByVersion(ctx context.Context, version uint64) (fl.Model, error) {
	var m fl.Model
	path := modelsPath + "/" + strconv.FormatUint(version, 10)
	if err := sdk.do(ctx, http.MethodGet, path, "", nil, &m); err != nil {
		return fl.Model{}, err
	}

	return m, nil
}

func (sdk *HTTPSDK) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, sdk.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrTransport, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := sdk.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrTransport, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return statusError(resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.ErrTransport, fmt.Errorf("malformed response from %s: %w", path, err))
	}

	return nil
}

func statusError(code int, data []byte) error {
	var eb errorBody
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &eb); err == nil && eb.Error != "" {
		msg = eb.Error
	}
	cause := fmt.Errorf("status %d: %s", code, msg)

	switch code {
	case http.StatusConflict:
		return pkgerrors.Wrap(pkgerrors.ErrVersionConflict, cause)
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.ErrUnexpectedStatus, pkgerrors.Wrap(pkgerrors.ErrNotFound, cause))
	default:
		return pkgerrors.Wrap(pkgerrors.ErrUnexpectedStatus, cause)
	}
}
