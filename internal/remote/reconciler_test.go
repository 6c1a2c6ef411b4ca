package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solar-field-backend/config"
	"solar-field-backend/internal/model"
)

func TestHTTPReconciler_Reconcile(t *testing.T) {
	testCases := []struct {
		name      string
		status    int
		response  SyncResponse
		expectErr string
	}{
		{name: "accepted", status: http.StatusOK, response: SyncResponse{Accepted: true}},
		{name: "rejected", status: http.StatusOK, response: SyncResponse{Accepted: false, Message: "stale version"}, expectErr: "stale version"},
		{name: "server error", status: http.StatusBadGateway, expectErr: "status 502"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got SyncRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/sync", r.URL.Path)
				assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(tc.response)
			}))
			defer server.Close()

			r := NewHTTPReconciler(config.RemoteConfig{
				URL:            server.URL,
				Headers:        map[string]string{"X-Api-Key": "secret"},
				TimeoutSeconds: 5,
			}, zap.NewNop())

			err := r.Reconcile(context.Background(), model.ChangeSet{
				Schedules:  []model.Schedule{{ID: "visit-1", Title: "Inspection"}},
				Activities: []model.Activity{{ID: "act-1"}},
			})
			if tc.expectErr != "" {
				assert.ErrorContains(t, err, tc.expectErr)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, got.Schedules, 1)
			assert.Equal(t, "visit-1", got.Schedules[0].ID)
			assert.Len(t, got.Activities, 1)
		})
	}
}

func TestSimulated(t *testing.T) {
	assert.NoError(t, Simulated{}.Reconcile(context.Background(), model.ChangeSet{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Simulated{Delay: time.Hour}.Reconcile(ctx, model.ChangeSet{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_SelectsImplementation(t *testing.T) {
	_, ok := New(config.RemoteConfig{}, zap.NewNop()).(Simulated)
	assert.True(t, ok)
	_, ok = New(config.RemoteConfig{URL: "http://remote.invalid", TimeoutSeconds: 1}, zap.NewNop()).(*HTTPReconciler)
	assert.True(t, ok)
}
