package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nimbuserp/nimbus-saas/domains/provisioning/be/service"
)

func testDescriptor() service.TenantDescriptor {
	return service.TenantDescriptor{
		Code:        "acme",
		Subdomain:   "acme",
		DisplayName: "Acme Corp",
		Plan:        "standard",
		AdminEmail:  "owner@acme.test",
	}
}

func TestEnsureDatabaseUpsertsByCode(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey string
	var gotBody databaseUpsertRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(databaseUpsertResponse{
			DatabaseName: "erp_acme",
			DatabaseHost: "db-7.internal",
		})
	}))
	defer srv.Close()

	client := NewDBServiceClient(srv.URL, "sekrit", zap.NewNop())

	info, err := client.EnsureDatabase(context.Background(), testDescriptor())
	require.NoError(t, err)
	require.Equal(t, "erp_acme", info.DatabaseName)
	require.Equal(t, "db-7.internal", info.DatabaseHost)

	// PUT keyed by tenant code makes the call safe to repeat after a
	// half-finished run.
	require.Equal(t, http.MethodPut, gotMethod)
	require.Equal(t, "/v1/databases/acme", gotPath)
	require.Equal(t, "sekrit", gotAPIKey)
	require.Equal(t, "acme", gotBody.Subdomain)
	require.Equal(t, "owner@acme.test", gotBody.AdminEmail)
}

func TestEnsureDatabaseDecodesStructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(remoteErrorBody{
			Code:    "name_taken",
			Message: "database name already in use",
		})
	}))
	defer srv.Close()

	client := NewDBServiceClient(srv.URL, "", zap.NewNop())

	_, err := client.EnsureDatabase(context.Background(), testDescriptor())
	require.Error(t, err)

	var remote *service.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusConflict, remote.HTTPStatus)
	require.Equal(t, "name_taken", remote.Code)
	require.Equal(t, "database name already in use", remote.Message)
}

func TestEnsureDatabaseUnparseableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewDBServiceClient(srv.URL, "", zap.NewNop())

	_, err := client.EnsureDatabase(context.Background(), testDescriptor())

	var remote *service.RemoteError
	require.ErrorAs(t, err, &remote)
	require.Equal(t, http.StatusBadGateway, remote.HTTPStatus)
	require.Equal(t, "unknown", remote.Code)
	require.Contains(t, remote.Message, "upstream exploded")
}

func TestGetDatabaseStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/databases/acme/status", r.URL.Path)
		json.NewEncoder(w).Encode(databaseStatusResponse{State: "ready", Ready: true})
	}))
	defer srv.Close()

	client := NewDBServiceClient(srv.URL, "", zap.NewNop())

	status, err := client.GetDatabaseStatus(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "ready", status.State)
	require.True(t, status.Ready)
}
