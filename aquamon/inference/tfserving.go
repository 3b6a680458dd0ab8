package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// TFServing talks to the TensorFlow Serving REST predict API.
type TFServing struct {
	// URL is the server root, e.g. http://localhost:8501
	URL     string
	Model   string
	Version string
	Client  *http.Client
}

func NewTFServing(url, model, version string, timeout time.Duration) *TFServing {
	return &TFServing{
		URL:     strings.TrimRight(url, "/"),
		Model:   model,
		Version: version,
		Client:  &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Instances []interface{} `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

func (s *TFServing) endpoint() string {
	if s.Version != "" {
		return fmt.Sprintf("%s/v1/models/%s/versions/%s:predict", s.URL, s.Model, s.Version)
	}
	return fmt.Sprintf("%s/v1/models/%s:predict", s.URL, s.Model)
}

// predict sends a batch of exactly one instance and returns its prediction row.
func (s *TFServing) predict(ctx context.Context, instance interface{}) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: []interface{}{instance}})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal predict request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create predict request")
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "predict request to %s failed", s.Model)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read predict response")
	}
	log.Debugf("tfserving %s answered %d in %s", s.Model, resp.StatusCode, time.Since(start))

	var parsed predictResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("model %s returned status %d: %s", s.Model, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, errors.Wrap(err, "failed to parse predict response")
	}
	if parsed.Error != "" {
		return nil, errors.Errorf("model %s: %s", s.Model, parsed.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("model %s returned status %d", s.Model, resp.StatusCode)
	}
	if len(parsed.Predictions) != 1 {
		return nil, errors.Errorf("model %s returned %d predictions for 1 instance", s.Model, len(parsed.Predictions))
	}
	return parsed.Predictions[0], nil
}

// RegressionClient serves the signal-to-concentration model.
type RegressionClient struct {
	*TFServing
}

func (c RegressionClient) Predict(ctx context.Context, input []float64) ([]float64, error) {
	return c.predict(ctx, input)
}

// SequenceClient serves the trend model.
type SequenceClient struct {
	*TFServing
}

func (c SequenceClient) Predict(ctx context.Context, history [][]float64) ([]float64, error) {
	return c.predict(ctx, history)
}
