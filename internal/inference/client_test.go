package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HassanDastagir/SpotCancerAI/internal/apperr"
	"github.com/HassanDastagir/SpotCancerAI/internal/config"
	"github.com/HassanDastagir/SpotCancerAI/internal/model"
)

func newTestClient(url string, timeout time.Duration) *Client {
	return NewClient(config.InferenceConfig{URL: url, Timeout: timeout}, zap.NewNop())
}

func TestPredict_FlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "lesion.png", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"label":"Malignant","confidence":0.82}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 5*time.Second).Predict(context.Background(), []byte("png-bytes"), "lesion.png", "image/png")

	require.NoError(t, err)
	assert.Equal(t, model.LabelMalignant, res.Label)
	assert.InDelta(t, 0.82, res.Confidence, 1e-9)
}

func TestPredict_ProbabilityVectorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"top_label":"Suspicious","probabilities":[0.1,0.65,0.25]}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 5*time.Second).Predict(context.Background(), []byte("x"), "a.jpg", "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, model.LabelSuspicious, res.Label)
	assert.InDelta(t, 0.65, res.Confidence, 1e-9)
	assert.Len(t, res.Probabilities, 3)
}

func TestPredict_RemoteFailureFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"cannot decode image"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5*time.Second).Predict(context.Background(), []byte("x"), "a.jpg", "image/jpeg")

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindService))
}

func TestPredict_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5*time.Second).Predict(context.Background(), []byte("x"), "a.jpg", "image/jpeg")

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindService))
}

func TestPredict_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5*time.Second).Predict(context.Background(), []byte("x"), "a.jpg", "image/jpeg")

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindService))
}

func TestPredict_MissingConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"label":"Benign"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5*time.Second).Predict(context.Background(), []byte("x"), "a.jpg", "image/jpeg")

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindService))
}

func TestPredict_ConfidenceOutOfRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"label":"Benign","confidence":1.4}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5*time.Second).Predict(context.Background(), []byte("x"), "a.jpg", "image/jpeg")

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindService))
}

func TestPredict_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"success":true,"label":"Benign","confidence":0.9}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 50*time.Millisecond).Predict(context.Background(), []byte("x"), "a.jpg", "image/jpeg")

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTimeout))
}
