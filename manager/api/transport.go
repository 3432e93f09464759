package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/secagg/manager"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"
	maxBodySize     = 32 << 20
	versionKey      = "version"
)

// MakeHandler returns the HTTP handler of the aggregation server.
func MakeHandler(svc manager.Service, logger *slog.Logger, instanceID string) http.Handler {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
		kithttp.ServerErrorHandler(errorLogger{logger: logger}),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Get("/get_model", kithttp.NewServer(
		getModelEndpoint(svc),
		decodeEmpty(getModelReq{}),
		encodeResponse,
		opts...,
	).ServeHTTP)

	mux.Post("/update_model", kithttp.NewServer(
		submitEndpoint(svc),
		decodeSubmit,
		encodeResponse,
		opts...,
	).ServeHTTP)

	mux.Post("/update_model_cbor", kithttp.NewServer(
		submitCBOREndpoint(svc),
		decodeSubmitCBOR,
		encodeResponse,
		opts...,
	).ServeHTTP)

	mux.Get("/status", kithttp.NewServer(
		statusEndpoint(svc),
		decodeEmpty(statusReq{}),
		encodeResponse,
		opts...,
	).ServeHTTP)

	mux.Route("/models", func(r chi.Router) {
		r.Get("/", kithttp.NewServer(
			listModelsEndpoint(svc),
			decodeEmpty(listModelsReq{}),
			encodeResponse,
			opts...,
		).ServeHTTP)
		r.Get("/{version}", kithttp.NewServer(
			viewModelEndpoint(svc),
			decodeViewModel,
			encodeResponse,
			opts...,
		).ServeHTTP)
	})

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = encodeResponse(r.Context(), w, healthRes{Status: "pass", InstanceID: instanceID})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(mux, "secagg-manager")
}

func decodeEmpty(req any) kithttp.DecodeRequestFunc {
	return func(context.Context, *http.Request) (any, error) {
		return req, nil
	}
}

func decodeSubmit(_ context.Context, r *http.Request) (any, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, contentTypeJSON) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("unsupported content type %q", ct))
	}

	var req submitReq
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req.Submission); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("failed to decode request body: %w", err))
	}

	return req, nil
}

func decodeSubmitCBOR(_ context.Context, r *http.Request) (any, error) {
	if ct := r.Header.Get("Content-Type"); !strings.Contains(ct, contentTypeCBOR) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("unsupported content type %q", ct))
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidData, fmt.Errorf("failed to read request body: %w", err))
	}

	return submitCBORReq{data: data}, nil
}

func decodeViewModel(_ context.Context, r *http.Request) (any, error) {
	raw := chi.URLParam(r, versionKey)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidParams, fmt.Errorf("invalid model version %q", raw))
	}

	return viewModelReq{version: v}, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response any) error {
	w.Header().Set("Content-Type", contentTypeJSON)
	if ar, ok := response.(Response); ok {
		w.WriteHeader(ar.Code())
	}

	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode(err))

	_ = json.NewEncoder(w).Encode(errorRes{Err: err.Error()})
}

func statusCode(err error) int {
	switch {
	case pkgerrors.Contains(err, pkgerrors.ErrVersionConflict):
		return http.StatusConflict
	case pkgerrors.Contains(err, pkgerrors.ErrInvalidData),
		pkgerrors.Contains(err, pkgerrors.ErrInvalidParams):
		return http.StatusBadRequest
	case pkgerrors.Contains(err, pkgerrors.ErrCrypto),
		pkgerrors.Contains(err, pkgerrors.ErrAggregationPrecondition):
		return http.StatusUnprocessableEntity
	case pkgerrors.Contains(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorLogger struct {
	logger *slog.Logger
}

func (l errorLogger) Handle(ctx context.Context, err error) {
	if statusCode(err) >= http.StatusInternalServerError {
		l.logger.ErrorContext(ctx, "Request failed", slog.Any("error", err))

		return
	}
	l.logger.DebugContext(ctx, "Request rejected", slog.Any("error", err))
}
