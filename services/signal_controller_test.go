package services

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

	"greenwave/models"
)

func TestBuildSignalPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	payload := buildSignalPayload(map[string]models.SignalState{
		"SIG-02": models.SignalRed,
		"SIG-01": models.SignalEmergency,
	}, now)
	require.Len(t, payload.Commands, 2)
	assert.Equal(t, "SIG-01", payload.Commands[0].SignalID)
	assert.Equal(t, "urgent", payload.Priority)

	payload = buildSignalPayload(map[string]models.SignalState{"SIG-01": models.SignalGreen}, now)
	assert.Equal(t, "normal", payload.Priority)
}

func TestApplySignalStates(t *testing.T) {
	var got SignalControllerPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/signals/override", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	svc := NewSignalControllerService(zap.NewNop(), server.URL+"/")
	err := svc.ApplySignalStates(context.Background(), map[string]models.SignalState{"SIG-01": models.SignalEmergency})
	require.NoError(t, err)
	require.Len(t, got.Commands, 1)
	assert.Equal(t, models.SignalEmergency, got.Commands[0].State)

	assert.NoError(t, svc.ApplySignalStates(context.Background(), nil), "nothing to send")
}

func TestApplySignalStatesReportsGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	svc := NewSignalControllerService(zap.NewNop(), server.URL)
	err := svc.ApplySignalStates(context.Background(), map[string]models.SignalState{"SIG-01": models.SignalRed})
	assert.ErrorContains(t, err, "503")
}
