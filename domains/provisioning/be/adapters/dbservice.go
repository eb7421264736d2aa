package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
)

// Remote database creation is slow; the upsert call gets a long deadline
// while the status probe stays short.
const (
	ensureTimeout = 5 * time.Minute
	statusTimeout = 30 * time.Second
)

// DBServiceClient talks to the database provisioning service. The upsert is
// PUT-by-tenant-code, so re-running it after a partial failure updates the
// existing database instead of creating a second one.
type DBServiceClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewDBServiceClient constructs a client for the provisioning service.
func NewDBServiceClient(baseURL, apiKey string, logger *zap.Logger) *DBServiceClient {
	if baseURL == "" {
		panic("provisioning service base url is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &DBServiceClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: ensureTimeout},
		logger:  logger,
	}
}

type databaseUpsertRequest struct {
	Subdomain   string `json:"subdomain"`
	DisplayName string `json:"display_name"`
	Plan        string `json:"plan"`
	AdminEmail  string `json:"admin_email"`
}

type databaseUpsertResponse struct {
	DatabaseName string `json:"database_name"`
	DatabaseHost string `json:"database_host"`
}

type databaseStatusResponse struct {
	State string `json:"state"`
	Ready bool   `json:"ready"`
}

type remoteErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EnsureDatabase upserts the tenant database and returns its connection info.
func (c *DBServiceClient) EnsureDatabase(ctx context.Context, desc service.TenantDescriptor) (service.ConnectionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, ensureTimeout)
	defer cancel()

	body, err := json.Marshal(databaseUpsertRequest{
		Subdomain:   desc.Subdomain,
		DisplayName: desc.DisplayName,
		Plan:        desc.Plan,
		AdminEmail:  desc.AdminEmail,
	})
	if err != nil {
		return service.ConnectionInfo{}, fmt.Errorf("encode upsert request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/databases/%s", c.baseURL, desc.Code)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return service.ConnectionInfo{}, fmt.Errorf("build upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	c.logger.Info("upserting tenant database", zap.String("tenant_code", desc.Code))

	resp, err := c.http.Do(req)
	if err != nil {
		return service.ConnectionInfo{}, fmt.Errorf("call provisioning service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return service.ConnectionInfo{}, decodeRemoteError(resp)
	}

	var out databaseUpsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return service.ConnectionInfo{}, fmt.Errorf("decode upsert response: %w", err)
	}
	return service.ConnectionInfo{
		DatabaseName: out.DatabaseName,
		DatabaseHost: out.DatabaseHost,
	}, nil
}

// GetDatabaseStatus probes the remote database state.
func (c *DBServiceClient) GetDatabaseStatus(ctx context.Context, tenantCode string) (service.DatabaseStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/databases/%s/status", c.baseURL, tenantCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return service.DatabaseStatus{}, fmt.Errorf("build status request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return service.DatabaseStatus{}, fmt.Errorf("call provisioning service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return service.DatabaseStatus{}, decodeRemoteError(resp)
	}

	var out databaseStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return service.DatabaseStatus{}, fmt.Errorf("decode status response: %w", err)
	}
	return service.DatabaseStatus{State: out.State, Ready: out.Ready}, nil
}

// decodeRemoteError preserves the structured error body so the executor can
// store the raw detail while user-facing surfaces see only the sanitized form.
func decodeRemoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body remoteErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		return &service.RemoteError{
			HTTPStatus: resp.StatusCode,
			Code:       "unknown",
			Message:    string(raw),
		}
	}
	return &service.RemoteError{
		HTTPStatus: resp.StatusCode,
		Code:       body.Code,
		Message:    body.Message,
	}
}

var _ service.DatabaseProvisioner = (*DBServiceClient)(nil)
