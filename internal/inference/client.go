// Package inference calls the remote prediction service. One submission
// makes exactly one attempt: the call either succeeds within the configured
// round-trip bound or fails, and no partial result is ever accepted.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"go.uber.org/zap"

	"github.com/HassanDastagir/SpotCancerAI/internal/apperr"
	"github.com/HassanDastagir/SpotCancerAI/internal/config"
	"github.com/HassanDastagir/SpotCancerAI/internal/model"
)

// Result is the parsed prediction for one image.
type Result struct {
	Label         model.PredictionLabel
	Confidence    float64
	Probabilities []float64
}

// Client sends images to the prediction endpoint as multipart payloads.
type Client struct {
	httpClient *http.Client
	url        string
	logger     *zap.Logger
}

// NewClient builds an inference client with a hard request timeout.
func NewClient(cfg config.InferenceConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
		logger:     logger.Named("inference"),
	}
}

// predictionResponse accepts both the flat {label, confidence} shape and the
// probability-vector shape the model service emits for multi-class output.
type predictionResponse struct {
	Success       *bool     `json:"success"`
	Error         string    `json:"error"`
	Label         string    `json:"label"`
	TopLabel      string    `json:"top_label"`
	Confidence    *float64  `json:"confidence"`
	Probability   *float64  `json:"probability"`
	Probabilities []float64 `json:"probabilities"`
}

// Predict uploads the image and parses the service's prediction. The round
// trip is bounded by the client timeout; timeouts and service faults map to
// distinct error kinds so the HTTP layer can surface them separately.
func (c *Client) Predict(ctx context.Context, image []byte, filename, mimeType string) (*Result, error) {
	body, contentType, err := encodeMultipart(image, filename, mimeType)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, "failed to encode inference request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindService, "failed to build inference request", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("inference call timed out", zap.String("url", c.url))
			return nil, apperr.Wrap(apperr.KindTimeout, "analysis service did not respond in time", err)
		}
		return nil, apperr.Wrap(apperr.KindService, "analysis service is unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperr.Wrap(apperr.KindService, "analysis service returned an error",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperr.Wrap(apperr.KindService, "analysis service returned a malformed response", err)
	}

	return parseResult(payload)
}

func parseResult(payload predictionResponse) (*Result, error) {
	if payload.Success != nil && !*payload.Success {
		return nil, apperr.Wrap(apperr.KindService, "analysis service rejected the image",
			fmt.Errorf("remote error: %s", payload.Error))
	}

	label := payload.Label
	if label == "" {
		label = payload.TopLabel
	}
	if label == "" {
		return nil, apperr.Wrap(apperr.KindService, "analysis service returned a malformed response",
			errors.New("response carries no prediction label"))
	}

	confidence, ok := pickConfidence(payload)
	if !ok {
		return nil, apperr.Wrap(apperr.KindService, "analysis service returned a malformed response",
			errors.New("response carries no confidence value"))
	}
	if confidence < 0 || confidence > 1 {
		return nil, apperr.Wrap(apperr.KindService, "analysis service returned a malformed response",
			fmt.Errorf("confidence %f outside [0,1]", confidence))
	}

	return &Result{
		Label:         model.PredictionLabel(label),
		Confidence:    confidence,
		Probabilities: payload.Probabilities,
	}, nil
}

func pickConfidence(payload predictionResponse) (float64, bool) {
	if payload.Confidence != nil {
		return *payload.Confidence, true
	}
	if payload.Probability != nil {
		return *payload.Probability, true
	}
	if len(payload.Probabilities) > 0 {
		top := payload.Probabilities[0]
		for _, p := range payload.Probabilities[1:] {
			if p > top {
				top = p
			}
		}
		return top, true
	}
	return 0, false
}

func encodeMultipart(image []byte, filename, mimeType string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	hdr.Set("Content-Type", mimeType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
