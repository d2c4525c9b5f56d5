package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/saaskit/backend/internal/infrastructure/config"
)

// UpstashProvider implements Provider against the Upstash Redis REST API.
// Each call posts a single Redis command as a JSON array and reads the
// {"result": ...} envelope back.
type UpstashProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewUpstashProvider creates a provider for the given REST endpoint.
func NewUpstashProvider(cfg config.UpstashConfig) *UpstashProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UpstashProvider{
		baseURL:    cfg.URL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type upstashResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// command executes a Redis command and returns the raw result field.
func (p *UpstashProvider) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("upstash marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstash build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstash request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("upstash read response: %w", err)
	}

	var out upstashResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("upstash decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("upstash command failed: %s", out.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstash unexpected status %d", resp.StatusCode)
	}

	return out.Result, nil
}

func (p *UpstashProvider) Get(ctx context.Context, key string) (string, error) {
	result, err := p.command(ctx, "GET", key)
	if err != nil {
		return "", err
	}
	if string(result) == "null" {
		return "", ErrCacheMiss
	}
	var val string
	if err := json.Unmarshal(result, &val); err != nil {
		return "", fmt.Errorf("upstash decode get result: %w", err)
	}
	return val, nil
}

func (p *UpstashProvider) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := []any{"SET", key, value}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	_, err := p.command(ctx, args...)
	return err
}

// SetNX maps to SET ... NX so the existence check happens server-side in one
// command.
func (p *UpstashProvider) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	args := []any{"SET", key, value, "NX"}
	if ttl > 0 {
		args = append(args, "PX", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	result, err := p.command(ctx, args...)
	if err != nil {
		return false, err
	}
	// SET NX returns OK when the key was written, null when it existed.
	return string(result) != "null", nil
}

func (p *UpstashProvider) Delete(ctx context.Context, key string) error {
	_, err := p.command(ctx, "DEL", key)
	return err
}

func (p *UpstashProvider) Exists(ctx context.Context, key string) (bool, error) {
	result, err := p.command(ctx, "EXISTS", key)
	if err != nil {
		return false, err
	}
	var n int64
	if err := json.Unmarshal(result, &n); err != nil {
		return false, fmt.Errorf("upstash decode exists result: %w", err)
	}
	return n > 0, nil
}

func (p *UpstashProvider) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	result, err := p.command(ctx, "INCRBY", key, strconv.FormatInt(delta, 10))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(result, &n); err != nil {
		return 0, fmt.Errorf("upstash decode incrby result: %w", err)
	}
	if n == delta && ttl > 0 {
		if err := p.Expire(ctx, key, ttl); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (p *UpstashProvider) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := p.command(ctx, "PEXPIRE", key, strconv.FormatInt(ttl.Milliseconds(), 10))
	return err
}

// TTL maps to PTTL. Negative results mean the key is missing or has no
// expiration; both map to zero.
func (p *UpstashProvider) TTL(ctx context.Context, key string) (time.Duration, error) {
	result, err := p.command(ctx, "PTTL", key)
	if err != nil {
		return 0, err
	}
	var ms int64
	if err := json.Unmarshal(result, &ms); err != nil {
		return 0, fmt.Errorf("upstash decode pttl result: %w", err)
	}
	if ms < 0 {
		return 0, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func (p *UpstashProvider) Ping(ctx context.Context) error {
	_, err := p.command(ctx, "PING")
	return err
}

// Close is a no-op; the provider holds no persistent connections.
func (p *UpstashProvider) Close() error {
	return nil
}

var _ Provider = (*UpstashProvider)(nil)
