package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"water-monitoring/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAuthenticator(t *testing.T) {
	auth := NewStaticAuthenticator()

	tests := []struct {
		name       string
		identifier string
		secret     string
		wantRole   model.Role
		wantName   string
		wantErr    bool
	}{
		{name: "admin", identifier: "admin@irrigation.gov", secret: "admin123", wantRole: model.RoleAdmin, wantName: "Dr. John Smith"},
		{name: "officer", identifier: "officer@irrigation.gov", secret: "officer123", wantRole: model.RoleOfficer, wantName: "Sarah Johnson"},
		{name: "viewer", identifier: "viewer@irrigation.gov", secret: "viewer123", wantRole: model.RoleViewer, wantName: "Mike Wilson"},
		{name: "wrong secret", identifier: "admin@irrigation.gov", secret: "admin124", wantErr: true},
		{name: "identifier is case-sensitive", identifier: "Admin@irrigation.gov", secret: "admin123", wantErr: true},
		{name: "secret must match exactly", identifier: "admin@irrigation.gov", secret: "admin123 ", wantErr: true},
		{name: "unknown identifier", identifier: "nobody@irrigation.gov", secret: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := auth.Authenticate(context.Background(), tt.identifier, tt.secret)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, identity.Role)
			assert.Equal(t, tt.wantName, identity.Name)
			assert.Equal(t, tt.identifier, identity.UserID)
		})
	}
}

func newIdentityProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/authenticate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body remoteCredentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch body.Identifier {
		case "officer":
			if body.Secret != "s3cret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(remoteIdentity{UserID: "u-42", Name: "Sarah Johnson", Role: "Officer"})
		case "strange":
			_ = json.NewEncoder(w).Encode(remoteIdentity{UserID: "u-7", Name: "Odd", Role: "Superuser"})
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "slow":
			time.Sleep(200 * time.Millisecond)
			_ = json.NewEncoder(w).Encode(remoteIdentity{UserID: "u-9", Name: "Slow", Role: "Viewer"})
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteAuthenticator(t *testing.T) {
	srv := newIdentityProvider(t)
	auth := NewRemoteAuthenticator(srv.URL, time.Second)

	identity, err := auth.Authenticate(context.Background(), "officer", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{UserID: "u-42", Name: "Sarah Johnson", Role: model.RoleOfficer}, *identity)

	_, err = auth.Authenticate(context.Background(), "officer", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Authenticate(context.Background(), "stranger", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRemoteAuthenticator_ProviderFailures(t *testing.T) {
	srv := newIdentityProvider(t)
	auth := NewRemoteAuthenticator(srv.URL, time.Second)

	_, err := auth.Authenticate(context.Background(), "broken", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Authenticate(context.Background(), "strange", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unusable identity")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = auth.Authenticate(ctx, "slow", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
