package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/pkg/retry"
)

func fastClient(baseURL string) *Client {
	c := NewClient(baseURL, "test-key")
	c.retryCfg = retry.Config{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 1, Multiplier: 1}
	return c
}

func TestCreateCall_SendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/calls", r.URL.Path)

		var req domain.CreateCallRecordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "agent-1", req.AgentID)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.CallRecord{ID: "call-1", AgentID: req.AgentID})
	}))
	defer srv.Close()

	rec, err := fastClient(srv.URL).CreateCall(context.Background(), &domain.CreateCallRecordRequest{
		AgentID:   "agent-1",
		Direction: domain.CallDirectionInbound,
	})
	require.NoError(t, err)
	assert.Equal(t, "call-1", rec.ID)
}

func TestDo_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]domain.KnowledgeChunk{{Text: "refund policy", Score: 0.9}})
	}))
	defer srv.Close()

	chunks, err := fastClient(srv.URL).QueryKnowledge(context.Background(), "agent-1", "refunds", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	require.Len(t, chunks, 1)
	assert.Equal(t, "refund policy", chunks[0].Text)
}

func TestDo_ClientErrorIsPermanent(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).UpdateCall(context.Background(), "missing", &domain.UpdateCallRecordRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
