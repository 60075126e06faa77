package registry

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
)

// RemoteCommand is a command as the registry reports it back, with the
// identifier the registry assigned
type RemoteCommand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Patch carries a partial command update. Nil fields are left unchanged.
type Patch struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Options     []Option `json:"options,omitempty"`
}

// ClientConfig holds registry client configuration
type ClientConfig struct {
	// APIBase is the platform REST API root. Required.
	APIBase string
	// AppID scopes every route to one application. Required.
	AppID string
	// Token authenticates requests. Required.
	Token  string
	Logger zerolog.Logger
}

// Client talks to the remote command registry. It is a plain
// request/response mapping over the registry's CRUD routes; failures are
// returned to the caller and never retried here.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new registry client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIBase == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	if cfg.AppID == "" {
		return nil, fmt.Errorf("application id is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: cfg.Logger.With().Str("component", "registry-client").Logger(),
	}, nil
}

// List returns the commands currently registered. An empty guildID
// addresses the global command set.
func (c *Client) List(ctx context.Context, guildID string) ([]RemoteCommand, error) {
	var commands []RemoteCommand
	if err := c.do(ctx, http.MethodGet, c.route(guildID, ""), nil, &commands); err != nil {
		return nil, err
	}
	return commands, nil
}

// Create registers a single new command
func (c *Client) Create(ctx context.Context, guildID string, desc Descriptor) (*RemoteCommand, error) {
	body, err := desc.wire()
	if err != nil {
		return nil, err
	}

	var created RemoteCommand
	if err := c.do(ctx, http.MethodPost, c.route(guildID, ""), body, &created); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("command", desc.Name).
		Str("commandId", created.ID).
		Msg("Command created")

	return &created, nil
}

// Update applies a partial update to an existing command
func (c *Client) Update(ctx context.Context, guildID, commandID string, patch Patch) (*RemoteCommand, error) {
	var updated RemoteCommand
	if err := c.do(ctx, http.MethodPatch, c.route(guildID, commandID), patch, &updated); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("commandId", commandID).
		Msg("Command updated")

	return &updated, nil
}

// Delete removes a command from the registry
func (c *Client) Delete(ctx context.Context, guildID, commandID string) error {
	if err := c.do(ctx, http.MethodDelete, c.route(guildID, commandID), nil, nil); err != nil {
		return err
	}

	c.logger.Info().
		Str("commandId", commandID).
		Msg("Command deleted")

	return nil
}

// ReplaceAll atomically swaps the full command set for the given scope.
// Commands absent from descs are removed by the registry.
func (c *Client) ReplaceAll(ctx context.Context, guildID string, descs []Descriptor) ([]RemoteCommand, error) {
	body := make([]wireDescriptor, 0, len(descs))
	for i := range descs {
		wire, err := descs[i].wire()
		if err != nil {
			return nil, err
		}
		body = append(body, *wire)
	}

	var commands []RemoteCommand
	if err := c.do(ctx, http.MethodPut, c.route(guildID, ""), body, &commands); err != nil {
		return nil, err
	}

	c.logger.Info().
		Int("count", len(commands)).
		Str("guildId", guildID).
		Msg("Command set replaced")

	return commands, nil
}

// route builds the global or guild-scoped commands route
func (c *Client) route(guildID, commandID string) string {
	base := fmt.Sprintf("%s/applications/%s/commands", c.cfg.APIBase, url.PathEscape(c.cfg.AppID))
	if guildID != "" {
		base = fmt.Sprintf("%s/applications/%s/guilds/%s/commands",
			c.cfg.APIBase, url.PathEscape(c.cfg.AppID), url.PathEscape(guildID))
	}
	if commandID != "" {
		base += "/" + url.PathEscape(commandID)
	}
	return base
}

// do issues one registry request and decodes the response into out
func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("registry rejected %s %s with status %d: %s",
			method, endpoint, resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode registry response: %w", err)
		}
	}

	return nil
}
