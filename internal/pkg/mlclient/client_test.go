package mlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civixhq/civix/internal/pkg/workflow"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	return client, srv
}

func TestClientAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("assembles the three endpoint verdicts", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/predict-priority/", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)

			var payload textPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Broken streetlight", payload.Title)

			json.NewEncoder(w).Encode(priorityResponse{Priority: "High", Confidence: 0.9})
		})
		mux.HandleFunc("/api/detect-fake/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(fakeResponse{IsFake: false, FakeConfidence: 0.12, Reason: "Consistent details"})
		})
		mux.HandleFunc("/api/categorize/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(categoryResponse{Category: "Electricity", Confidence: 0.8})
		})

		client, srv := newTestClient(mux)
		defer srv.Close()

		analysis, err := client.Analyze(context.Background(), "Broken streetlight", "Dark for a week")

		require.NoError(t, err)
		assert.Equal(t, "Electricity", analysis.Category)
		assert.Equal(t, "High", analysis.Priority)
		assert.False(t, analysis.IsFake)
		assert.InDelta(t, 0.12, analysis.FakeConfidence, 0.001)
		assert.Equal(t, "Consistent details", analysis.Reasoning)
		assert.False(t, analysis.AnalyzedAt.IsZero())
	})

	t.Run("falls back to the generic confidence field", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/detect-fake/", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(fakeResponse{IsFake: true, Confidence: 0.77})
		})
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})

		client, srv := newTestClient(mux)
		defer srv.Close()

		analysis, err := client.Analyze(context.Background(), "t", "d")

		require.NoError(t, err)
		assert.InDelta(t, 0.77, analysis.FakeConfidence, 0.001)
	})

	t.Run("one failing endpoint fails the whole run", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/detect-fake/", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		})
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})

		client, srv := newTestClient(mux)
		defer srv.Close()

		analysis, err := client.Analyze(context.Background(), "t", "d")

		assert.ErrorIs(t, err, workflow.ErrClassifierUnavailable)
		assert.Nil(t, analysis, "no partial verdicts")
	})

	t.Run("unreachable service is unavailable", func(t *testing.T) {
		t.Parallel()

		client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

		_, err := client.Analyze(context.Background(), "t", "d")
		assert.ErrorIs(t, err, workflow.ErrClassifierUnavailable)
	})
}

func TestClientFindDuplicates(t *testing.T) {
	t.Parallel()

	t.Run("forwards the candidate pool and maps the hits", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/find-duplicates/", func(w http.ResponseWriter, r *http.Request) {
			var req duplicateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Pothole on Main", req.Candidate.Title)
			require.Len(t, req.ExistingIssues, 2)

			w.Write([]byte(`{"duplicates":[{"issue_id":"abc","title":"Pothole near Main","score":0.92}]}`))
		})

		client, srv := newTestClient(mux)
		defer srv.Close()

		matches, err := client.FindDuplicates(context.Background(),
			workflow.DuplicateCandidate{ID: 1, Title: "Pothole on Main", Description: "Deep pothole"},
			[]workflow.DuplicateCandidate{
				{ID: 2, PublicID: "p2", Title: "Pothole near Main"},
				{ID: 3, PublicID: "p3", Title: "Fallen tree"},
			})

		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "abc", matches[0].IssueID)
		assert.InDelta(t, 0.92, matches[0].Score, 0.001)
		assert.False(t, matches[0].Strong, "strength is the caller's call, not the client's")
	})

	t.Run("backend failure maps to detection unavailable", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/find-duplicates/", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "index rebuilding", http.StatusInternalServerError)
		})

		client, srv := newTestClient(mux)
		defer srv.Close()

		matches, err := client.FindDuplicates(context.Background(), workflow.DuplicateCandidate{}, nil)

		assert.ErrorIs(t, err, workflow.ErrDetectionUnavailable)
		assert.Nil(t, matches)
	})
}

func TestClientHealth(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/health/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"ok"}`))
		})

		client, srv := newTestClient(mux)
		defer srv.Close()

		assert.NoError(t, client.Health(context.Background()))
	})

	t.Run("non-200 is unhealthy", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/api/health/", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		})

		client, srv := newTestClient(mux)
		defer srv.Close()

		assert.Error(t, client.Health(context.Background()))
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ML_SERVICE_URL", "http://ml.internal:9000")
	t.Setenv("ML_TIMEOUT_SECONDS", "3")

	cfg := ConfigFromEnv()

	assert.Equal(t, "http://ml.internal:9000", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}
