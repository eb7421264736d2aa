package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
)

const rpcTimeout = 60 * time.Second

// OdooConfig holds the connection settings for one Odoo instance. Login and
// Password authenticate the integration user on every call, so a resumed
// pipeline run never depends on a session created by an earlier process.
type OdooConfig struct {
	Endpoint string
	Login    string
	Password string
}

// odooClient is a minimal JSON-RPC 2.0 client for Odoo's /jsonrpc endpoint.
// Each execute_kw call carries the target database explicitly.
type odooClient struct {
	cfg    OdooConfig
	http   *http.Client
	nextID atomic.Int64
}

func newOdooClient(cfg OdooConfig) *odooClient {
	if cfg.Endpoint == "" {
		panic("odoo endpoint is required")
	}
	return &odooClient{
		cfg:  cfg,
		http: &http.Client{Timeout: rpcTimeout},
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Data    rpcData `json:"data"`
}

type rpcData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (c *odooClient) call(ctx context.Context, svc, method string, args []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: svc, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/jsonrpc", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call odoo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &service.RemoteError{
			HTTPStatus: resp.StatusCode,
			Code:       "http_error",
			Message:    fmt.Sprintf("odoo returned %s", resp.Status),
		}
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		msg := rpcResp.Error.Data.Message
		if msg == "" {
			msg = rpcResp.Error.Message
		}
		code := rpcResp.Error.Data.Name
		if code == "" {
			code = "rpc_error"
		}
		return &service.RemoteError{
			HTTPStatus: http.StatusOK,
			Code:       code,
			Message:    msg,
		}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode rpc result: %w", err)
		}
	}
	return nil
}

// authenticate resolves the integration user's uid in the given database.
// Odoo returns false instead of an error on bad credentials.
func (c *odooClient) authenticate(ctx context.Context, database, login string) (int64, error) {
	var result json.RawMessage
	err := c.call(ctx, "common", "authenticate",
		[]any{database, login, c.cfg.Password, map[string]any{}}, &result)
	if err != nil {
		return 0, err
	}

	var uid int64
	if err := json.Unmarshal(result, &uid); err != nil {
		return 0, &service.RemoteError{
			HTTPStatus: http.StatusUnauthorized,
			Code:       "auth_failed",
			Message:    fmt.Sprintf("authentication rejected for %s on database %s", login, database),
		}
	}
	return uid, nil
}

// executeKw runs model.method as the integration user in the given database.
func (c *odooClient) executeKw(ctx context.Context, database, model, method string, args []any, kwargs map[string]any, out any) error {
	uid, err := c.authenticate(ctx, database, c.cfg.Login)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return c.call(ctx, "object", "execute_kw",
		[]any{database, uid, c.cfg.Password, model, method, args, kwargs}, out)
}

// searchIDs returns matching record IDs for the domain filter.
func (c *odooClient) searchIDs(ctx context.Context, database, model string, domain []any) ([]int64, error) {
	var ids []int64
	err := c.executeKw(ctx, database, model, "search", []any{domain}, nil, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
