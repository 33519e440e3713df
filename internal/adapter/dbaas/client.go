// Package dbaas provides an HTTP client for the external database-as-a-service
// API that creates per-firm databases.
package dbaas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/firmsync/tenantcore/internal/config"
	"github.com/firmsync/tenantcore/internal/port/provisioner"
	"github.com/firmsync/tenantcore/internal/resilience"
)

// Client talks to the provisioning API. It implements provisioner.Provisioner.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a provisioning client from config. The API key is an
// opaque secret and is only ever placed in the Authorization header.
func NewClient(cfg config.Provisioner) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: resilience.NewBreaker(cfg.BreakerMaxFailures, cfg.BreakerTimeout),
	}
}

type createRequest struct {
	Name string `json:"name"`
}

type createResponse struct {
	Host             string `json:"host"`
	Database         string `json:"database"`
	ConnectionString string `json:"connection_string"`
}

// CreateDatabase asks the provisioning API for a new physical database named
// after the firm code. Callers guard invocation with the firm's persisted
// provisioning state; this call itself is not idempotent.
func (c *Client) CreateDatabase(ctx context.Context, firmCode string) (*provisioner.Database, error) {
	body, err := json.Marshal(createRequest{Name: "firm_" + firmCode})
	if err != nil {
		return nil, fmt.Errorf("marshal create database: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/databases", body)
	if err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}

	var resp createResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal create database: %w", err)
	}
	if resp.ConnectionString == "" {
		return nil, fmt.Errorf("create database: API returned no connection string")
	}

	return &provisioner.Database{
		Host:       resp.Host,
		Name:       resp.Database,
		ConnString: resp.ConnectionString,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("provisioning API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if err := c.breaker.Execute(call); err != nil {
		return nil, err
	}
	return result, nil
}
