package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"greenwave/models"
)

// SignalActuator drives physical signal controllers
type SignalActuator interface {
	ApplySignalStates(ctx context.Context, states map[string]models.SignalState) error
}

// SignalControllerService forwards signal overrides to a roadside controller gateway
type SignalControllerService struct {
	logger     *zap.Logger
	apiURL     string
	httpClient *http.Client
}

// SignalCommand is one state change in a controller request
type SignalCommand struct {
	SignalID string             `json:"signal_id"`
	State    models.SignalState `json:"state"`
}

// SignalControllerPayload represents the body sent to the controller gateway
type SignalControllerPayload struct {
	Commands []SignalCommand `json:"commands"`
	Priority string          `json:"priority"`
	SentAt   time.Time       `json:"sent_at"`
}

// NewSignalControllerService creates a new controller gateway client
func NewSignalControllerService(logger *zap.Logger, apiURL string) *SignalControllerService {
	return &SignalControllerService{
		logger: logger,
		apiURL: strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// buildSignalPayload orders commands by signal id. Any emergency state makes the request urgent.
func buildSignalPayload(states map[string]models.SignalState, now time.Time) SignalControllerPayload {
	payload := SignalControllerPayload{Priority: "normal", SentAt: now.UTC()}
	for id, state := range states {
		payload.Commands = append(payload.Commands, SignalCommand{SignalID: id, State: state})
		if state == models.SignalEmergency {
			payload.Priority = "urgent"
		}
	}
	sort.Slice(payload.Commands, func(i, j int) bool { return payload.Commands[i].SignalID < payload.Commands[j].SignalID })
	return payload
}

// ApplySignalStates posts the states to the gateway
func (s *SignalControllerService) ApplySignalStates(ctx context.Context, states map[string]models.SignalState) error {
	if len(states) == 0 {
		return nil
	}

	payload := buildSignalPayload(states, time.Now())
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/signals/override", s.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Greenwave-Dispatch/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("Failed to reach signal controller",
			zap.String("url", endpoint),
			zap.Error(err))
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.logger.Info("Signal override sent",
			zap.Int("signals", len(payload.Commands)),
			zap.String("priority", payload.Priority),
			zap.Int("status_code", resp.StatusCode))
		return nil
	}

	s.logger.Error("Signal controller returned error",
		zap.Int("status_code", resp.StatusCode),
		zap.String("status", resp.Status))
	return fmt.Errorf("signal controller error: %s", resp.Status)
}
