package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxhall/voxhall/internal/metrics"
	"github.com/voxhall/voxhall/pkg/interaction"
)

// CallbackClient delivers response envelopes for gateway interactions. The
// push channel has no synchronous response slot, so every envelope goes out
// through a follow-up callback request addressed by the interaction's id
// and delivery token.
type CallbackClient struct {
	apiBase    string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
}

// NewCallbackClient creates a new callback client
func NewCallbackClient(apiBase string, m *metrics.Metrics, logger zerolog.Logger) (*CallbackClient, error) {
	if apiBase == "" {
		return nil, fmt.Errorf("api base URL is required")
	}

	return &CallbackClient{
		apiBase: strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:  logger,
		metrics: m,
	}, nil
}

// Deliver posts the envelope to the interaction's callback endpoint. The
// wait flag asks the remote side to confirm delivery before responding.
func (c *CallbackClient) Deliver(ctx context.Context, interactionID, token string, envelope interaction.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	endpoint := fmt.Sprintf("%s/interactions/%s/%s/callback?with_response=true",
		c.apiBase, url.PathEscape(interactionID), url.PathEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.countDelivery("error")
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.countDelivery("rejected")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("callback rejected with status %d: %s", resp.StatusCode, string(snippet))
	}

	c.countDelivery("ok")
	return nil
}

func (c *CallbackClient) countDelivery(status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.CallbackDeliveriesTotal.WithLabelValues(status).Inc()
}
