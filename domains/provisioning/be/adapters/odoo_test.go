package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
)

// fakeOdoo is an in-process stand-in for Odoo's /jsonrpc endpoint. Tests
// program the authenticate result and a dispatch function for execute_kw.
type fakeOdoo struct {
	srv *httptest.Server

	mu         sync.Mutex
	authResult any
	authCalls  int
	execute    func(model, method string, args []json.RawMessage) (any, *rpcError)
}

func newFakeOdoo(t *testing.T) *fakeOdoo {
	t.Helper()
	f := &fakeOdoo{authResult: int64(2)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOdoo) config() OdooConfig {
	return OdooConfig{Endpoint: f.srv.URL, Login: "integration", Password: "s3cret"}
}

func (f *fakeOdoo) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params struct {
			Service string            `json:"service"`
			Method  string            `json:"method"`
			Args    []json.RawMessage `json:"args"`
		} `json:"params"`
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case req.Params.Service == "common" && req.Params.Method == "authenticate":
		f.authCalls++
		writeRPC(w, f.authResult, nil)
	case req.Params.Service == "object" && req.Params.Method == "execute_kw":
		var model, method string
		json.Unmarshal(req.Params.Args[3], &model)
		json.Unmarshal(req.Params.Args[4], &method)
		var callArgs []json.RawMessage
		json.Unmarshal(req.Params.Args[5], &callArgs)
		result, rpcErr := f.execute(model, method, callArgs)
		writeRPC(w, result, rpcErr)
	default:
		http.Error(w, "unknown service", http.StatusBadRequest)
	}
}

func writeRPC(w http.ResponseWriter, result any, rpcErr *rpcError) {
	resp := map[string]any{"jsonrpc": "2.0"}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	json.NewEncoder(w).Encode(resp)
}

func decodeDomainField(t *testing.T, raw json.RawMessage) [][]any {
	t.Helper()
	var domain [][]any
	require.NoError(t, json.Unmarshal(raw, &domain))
	return domain
}

func TestAuthenticateRejectedWhenOdooReturnsFalse(t *testing.T) {
	f := newFakeOdoo(t)
	f.authResult = false

	primary := NewPrimaryOdoo(f.config(), zap.NewNop())
	err := primary.Authenticate(context.Background(), "erp_acme", "integration")
	require.Error(t, err)

	var remote *service.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "auth_failed", remote.Code)
	require.Contains(t, remote.Message, "erp_acme")
}

func TestRPCErrorsCarryOdooExceptionName(t *testing.T) {
	f := newFakeOdoo(t)
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		return nil, &rpcError{
			Code:    200,
			Message: "Odoo Server Error",
			Data:    rpcData{Name: "odoo.exceptions.AccessError", Message: "operation not allowed"},
		}
	}

	primary := NewPrimaryOdoo(f.config(), zap.NewNop())
	err := primary.UpdateAdminUser(context.Background(), "erp_acme", service.AdminProfile{
		Email: "owner@acme.test", Name: "Alex Doe",
	})

	var remote *service.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "odoo.exceptions.AccessError", remote.Code)
	require.Equal(t, "operation not allowed", remote.Message)
}

func TestUpdateAdminUserRenamesTemplateAdmin(t *testing.T) {
	f := newFakeOdoo(t)
	var wroteValues map[string]any
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		switch method {
		case "search":
			domain := decodeDomainField(t, args[0])
			if domain[0][2] == "admin" {
				return []int64{1}, nil
			}
			return []int64{}, nil
		case "write":
			require.NoError(t, json.Unmarshal(args[1], &wroteValues))
			return true, nil
		}
		return nil, &rpcError{Message: "unexpected " + method}
	}

	primary := NewPrimaryOdoo(f.config(), zap.NewNop())
	err := primary.UpdateAdminUser(context.Background(), "erp_acme", service.AdminProfile{
		Email: "owner@acme.test", Name: "Alex Doe",
	})
	require.NoError(t, err)
	require.Equal(t, "owner@acme.test", wroteValues["login"])
	require.Equal(t, "owner@acme.test", wroteValues["email"])
	require.Equal(t, "Alex Doe", wroteValues["name"])
}

func TestUpdateAdminUserFallsBackToTargetLogin(t *testing.T) {
	f := newFakeOdoo(t)
	var searches [][]any
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		switch method {
		case "search":
			domain := decodeDomainField(t, args[0])
			searches = append(searches, domain[0])
			// A previous partial run already renamed the template admin.
			if domain[0][2] == "owner@acme.test" {
				return []int64{9}, nil
			}
			return []int64{}, nil
		case "write":
			return true, nil
		}
		return nil, &rpcError{Message: "unexpected " + method}
	}

	primary := NewPrimaryOdoo(f.config(), zap.NewNop())
	err := primary.UpdateAdminUser(context.Background(), "erp_acme", service.AdminProfile{
		Email: "owner@acme.test", Name: "Alex Doe",
	})
	require.NoError(t, err)
	require.Len(t, searches, 2)
}

func TestUpdateAdminUserMissingAccount(t *testing.T) {
	f := newFakeOdoo(t)
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		return []int64{}, nil
	}

	primary := NewPrimaryOdoo(f.config(), zap.NewNop())
	err := primary.UpdateAdminUser(context.Background(), "erp_acme", service.AdminProfile{
		Email: "owner@acme.test",
	})

	var remote *service.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, "admin_not_found", remote.Code)
}

func TestWriteBridgeMetadataSetsBothParameters(t *testing.T) {
	f := newFakeOdoo(t)
	params := map[string]string{}
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "ir.config_parameter", model)
		require.Equal(t, "set_param", method)
		var key, value string
		require.NoError(t, json.Unmarshal(args[0], &key))
		require.NoError(t, json.Unmarshal(args[1], &value))
		params[key] = value
		return true, nil
	}

	primary := NewPrimaryOdoo(f.config(), zap.NewNop())
	err := primary.WriteBridgeMetadata(context.Background(), "erp_acme", service.BridgeRefs{
		PartnerID: 4711, BillingUserID: 93,
	})
	require.NoError(t, err)
	require.Equal(t, "4711", params["nimbus.billing_partner_id"])
	require.Equal(t, "93", params["nimbus.billing_user_id"])
}

func TestSecondaryUpsertTenantCreatesWhenMissing(t *testing.T) {
	f := newFakeOdoo(t)
	var created map[string]any
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "res.partner", model)
		switch method {
		case "search":
			return []int64{}, nil
		case "create":
			require.NoError(t, json.Unmarshal(args[0], &created))
			return int64(4711), nil
		}
		return nil, &rpcError{Message: "unexpected " + method}
	}

	secondary := NewSecondaryOdoo(f.config(), "billing", zap.NewNop())
	id, err := secondary.UpsertTenant(context.Background(), service.TenantDescriptor{
		Code: "acme", Subdomain: "acme", DisplayName: "Acme Corp",
		Plan: "standard", AdminEmail: "owner@acme.test",
	})
	require.NoError(t, err)
	require.EqualValues(t, 4711, id)
	require.Equal(t, "acme", created["ref"])
	require.Equal(t, "https://acme.nimbuserp.com", created["website"])
	require.Equal(t, true, created["is_company"])
}

func TestSecondaryUpsertTenantUpdatesExistingPartner(t *testing.T) {
	f := newFakeOdoo(t)
	wrote := false
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		switch method {
		case "search":
			return []int64{7}, nil
		case "write":
			wrote = true
			return true, nil
		case "create":
			return nil, &rpcError{Message: "must not create when a match exists"}
		}
		return nil, &rpcError{Message: "unexpected " + method}
	}

	secondary := NewSecondaryOdoo(f.config(), "billing", zap.NewNop())
	id, err := secondary.UpsertTenant(context.Background(), service.TenantDescriptor{
		Code: "acme", Subdomain: "acme",
	})
	require.NoError(t, err)
	require.EqualValues(t, 7, id)
	require.True(t, wrote)
}

func TestSecondaryUpsertUserKeyedByLogin(t *testing.T) {
	f := newFakeOdoo(t)
	f.execute = func(model, method string, args []json.RawMessage) (any, *rpcError) {
		require.Equal(t, "res.users", model)
		switch method {
		case "search":
			domain := decodeDomainField(t, args[0])
			require.Equal(t, "login", domain[0][0])
			require.Equal(t, "owner@acme.test", domain[0][2])
			return []int64{}, nil
		case "create":
			return int64(93), nil
		}
		return nil, &rpcError{Message: "unexpected " + method}
	}

	secondary := NewSecondaryOdoo(f.config(), "billing", zap.NewNop())
	id, err := secondary.UpsertUser(context.Background(), "acme", service.AdminProfile{
		Email: "owner@acme.test", Name: "Alex Doe",
	})
	require.NoError(t, err)
	require.EqualValues(t, 93, id)
}
