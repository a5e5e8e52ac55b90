package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]User{
			{ID: "u-1", Username: "jan", Email: "jan@example.com", Role: "standard_user"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")

	users, err := client.GetUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jan", users[0].Username)
}

func TestClient_CreateUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var in User
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "piet", in.Username)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")

	out, err := client.CreateUser(context.Background(), User{ID: "u-2", Username: "piet"})
	require.NoError(t, err)
	assert.Equal(t, "u-2", out.ID)
}

func TestClient_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: ErrNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrUnavailable},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: ErrUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "")

			err := client.DeleteUser(context.Background(), "u-1")
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestClient_UnreachableIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listens anymore

	client := NewClient(srv.URL, "")

	_, err := client.GetUsers(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_ValidateAccessCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/access-codes/validate", r.URL.Path)

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "AB12-CD34", in["code"])
		assert.Equal(t, "portal-1", in["scope_id"])

		_ = json.NewEncoder(w).Encode(Validation{Valid: false, Reason: "code revoked"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")

	v, err := client.ValidateAccessCode(context.Background(), "AB12-CD34", "portal-1")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, "code revoked", v.Reason)
}
