package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTFServingRegression(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/fet:predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Instances [][]float64 `json:"instances"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, [][]float64{{0.1, 0.2}}, req.Instances)

		_, _ = w.Write([]byte(`{"predictions": [[7.1, 0.05, 4.9]]}`))
	}))
	defer srv.Close()

	c := RegressionClient{NewTFServing(srv.URL+"/", "fet", "", time.Second)}
	out, err := c.Predict(context.Background(), []float64{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, []float64{7.1, 0.05, 4.9}, out)
}

func TestTFServingSequenceVersioned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/cnn/versions/3:predict", r.URL.Path)

		var req struct {
			Instances [][][]float64 `json:"instances"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Instances, 1)
		assert.Len(t, req.Instances[0], 2)

		_, _ = w.Write([]byte(`{"predictions": [[7.0, 0.1, 5.0]]}`))
	}))
	defer srv.Close()

	c := SequenceClient{NewTFServing(srv.URL, "cnn", "3", time.Second)}
	out, err := c.Predict(context.Background(), [][]float64{{7, 0.1, 5}, {7, 0.1, 5}})
	require.NoError(t, err)
	assert.Equal(t, []float64{7.0, 0.1, 5.0}, out)
}

func TestTFServingErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		errMsg string
	}{
		{name: "Should surface server error field", status: http.StatusBadRequest, body: `{"error": "Input to reshape is a tensor with 3 values"}`, errMsg: "reshape"},
		{name: "Should surface non-json failure", status: http.StatusServiceUnavailable, body: "upstream down", errMsg: "status 503"},
		{name: "Should reject empty predictions", status: http.StatusOK, body: `{"predictions": []}`, errMsg: "0 predictions"},
		{name: "Should reject garbage", status: http.StatusOK, body: `not json`, errMsg: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := RegressionClient{NewTFServing(srv.URL, "fet", "", time.Second)}
			_, err := c.Predict(context.Background(), []float64{1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadAffine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
weights:
  - [2.0, 0.0]
  - [0.0, 0.5]
  - [1.0, 1.0]
bias: [7.0, 0.0, 0.0]
`), 0o600))

	a, err := LoadAffine(path)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Inputs())

	out, err := a.Predict(context.Background(), []float64{0.5, 0.2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{8.0, 0.1, 0.7}, out, 1e-12)

	_, err = a.Predict(context.Background(), []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestLoadAffineInvalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{name: "no rows", body: "bias: [1]\n"},
		{name: "bias mismatch", body: "weights: [[1], [2], [3]]\nbias: [1, 2]\n"},
		{name: "ragged rows", body: "weights: [[1, 2], [3]]\nbias: [0, 0]\n"},
		{name: "not yaml", body: "weights: [[1, 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))
			_, err := LoadAffine(path)
			assert.Error(t, err)
		})
	}

	_, err := LoadAffine(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLinearTrend(t *testing.T) {
	tests := []struct {
		name     string
		history  [][]float64
		expected []float64
	}{
		{
			name:     "Should extrapolate a straight line",
			history:  [][]float64{{7.0, 0.1, 5}, {7.1, 0.2, 5}, {7.2, 0.3, 5}},
			expected: []float64{7.3, 0.4, 5},
		},
		{
			name:     "Should hold a single row",
			history:  [][]float64{{6.5, 0.3, 4}},
			expected: []float64{6.5, 0.3, 4},
		},
		{
			name:     "Should fit noisy data",
			history:  [][]float64{{1}, {3}, {2}, {4}},
			expected: []float64{4.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := LinearTrend{}.Predict(context.Background(), tt.history)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.expected, out, 1e-9)
		})
	}

	_, err := LinearTrend{}.Predict(context.Background(), nil)
	assert.Error(t, err)
	_, err = LinearTrend{}.Predict(context.Background(), [][]float64{{1, 2}, {1}})
	assert.Error(t, err)
}
