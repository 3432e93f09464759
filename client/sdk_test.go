package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/absmach/secagg/manager"
	"github.com/absmach/secagg/manager/api"
	"github.com/absmach/secagg/pkg/crypto"
	"github.com/absmach/secagg/pkg/dp"
	pkgerrors "github.com/absmach/secagg/pkg/errors"
	"github.com/absmach/secagg/pkg/fl"
	"github.com/absmach/secagg/pkg/protect"
	"github.com/absmach/secagg/pkg/sss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTrainer struct {
	weights []float64
	samples int
}

func (f fixedTrainer) Train(context.Context, fl.Model) (TrainResult, error) {
	w := make([]float64, len(f.weights))
	copy(w, f.weights)

	return TrainResult{Weights: w, Loss: 0.1, NumSamples: f.samples}, nil
}

func newProtectors(t *testing.T) (*protect.Protector, *protect.Protector) {
	t.Helper()

	hexKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := crypto.ParseKey(hexKey)
	require.NoError(t, err)
	c, err := crypto.NewShareCipher(key, crypto.AlgAESGCM)
	require.NoError(t, err)

	client, err := protect.New(protect.Params{NumShares: 5, Threshold: 3, Scheme: sss.KindField, Sensitivity: 1, Epsilon: 1}, c)
	require.NoError(t, err)
	g, err := dp.NewGaussianWithRand(1e-12, 1, dp.NewSeededRand(3))
	require.NoError(t, err)
	client.WithNoise(g)

	server, err := protect.New(protect.Params{NumShares: 5, Threshold: 3, Scheme: sss.KindField}, c)
	require.NoError(t, err)

	return client, server
}

func newServer(t *testing.T, goal int, recoverer manager.Recoverer) *httptest.Server {
	t.Helper()

	svc, err := manager.NewService(manager.Config{AggregationGoal: goal, ModelDim: 2}, recoverer, nil, nil, discard)
	require.NoError(t, err)

	ts := httptest.NewServer(api.MakeHandler(svc, discard, "test"))
	t.Cleanup(ts.Close)

	return ts
}

func TestTwoClientsEndToEnd(t *testing.T) {
	ctx := context.Background()
	clientProt, serverProt := newProtectors(t)
	ts := newServer(t, 2, serverProt)

	jsonSDK, err := NewHTTPSDK(SDKConfig{ServerURL: ts.URL})
	require.NoError(t, err)
	cborSDK, err := NewHTTPSDK(SDKConfig{ServerURL: ts.URL + "/", CBOR: true})
	require.NoError(t, err)

	a := NewController(jsonSDK, fixedTrainer{weights: []float64{1, 1}, samples: 10}, clientProt, "a", discard)
	b := NewController(cborSDK, fixedTrainer{weights: []float64{3, 3}, samples: 30}, clientProt, "b", discard)

	res, err := a.RunRound(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.State)
	assert.False(t, res.Aggregated)

	res, err = b.RunRound(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Accepted, res.State)
	assert.True(t, res.Aggregated)
	assert.Equal(t, uint64(1), res.ModelVersion)

	m, err := jsonSDK.GetModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Version)
	assert.InDeltaSlice(t, []float64{2.5, 2.5}, m.Weights, 1e-6)

	st, err := jsonSDK.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.AggregationGoal)

	versions, err := jsonSDK.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, versions)

	m, err = jsonSDK.ModelByVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 40, m.TotalSamples)

	_, err = jsonSDK.ModelByVersion(ctx, 99)
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrNotFound), "got %v", err)
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrUnexpectedStatus), "got %v", err)
}

func TestStaleClientRetriesWithNewModel(t *testing.T) {
	ctx := context.Background()
	clientProt, serverProt := newProtectors(t)
	ts := newServer(t, 1, serverProt)

	sdk, err := NewHTTPSDK(SDKConfig{ServerURL: ts.URL})
	require.NoError(t, err)

	stale, err := sdk.GetModel(ctx)
	require.NoError(t, err)

	sealed, err := clientProt.Protect([]float64{1, 1})
	require.NoError(t, err)
	_, err = sdk.SubmitUpdate(ctx, fl.Submission{EncryptedShares: sealed, NumSamples: 1, ModelVersion: stale.Version})
	require.NoError(t, err)

	_, err = sdk.SubmitUpdate(ctx, fl.Submission{EncryptedShares: sealed, NumSamples: 1, ModelVersion: stale.Version})
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrVersionConflict), "got %v", err)
}

func TestSDKErrorClassification(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		desc    string
		handler http.HandlerFunc
		err     error
	}{
		{
			desc: "conflict",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"stale"}`))
			},
			err: pkgerrors.ErrVersionConflict,
		},
		{
			desc: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			err: pkgerrors.ErrUnexpectedStatus,
		},
		{
			desc: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			err: pkgerrors.ErrTransport,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ts := httptest.NewServer(tc.handler)
			defer ts.Close()

			sdk, err := NewHTTPSDK(SDKConfig{ServerURL: ts.URL})
			require.NoError(t, err)

			_, err = sdk.SubmitUpdate(ctx, fl.Submission{EncryptedShares: []string{"x"}, NumSamples: 1})
			assert.True(t, pkgerrors.Contains(err, tc.err), "got %v", err)
		})
	}

	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	sdk, err := NewHTTPSDK(SDKConfig{ServerURL: url})
	require.NoError(t, err)
	_, err = sdk.GetModel(ctx)
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrTransport), "got %v", err)

	_, err = NewHTTPSDK(SDKConfig{})
	assert.True(t, pkgerrors.Contains(err, pkgerrors.ErrConfiguration), "got %v", err)
}
