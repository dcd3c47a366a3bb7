package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"water-monitoring/internal/model"

	"github.com/go-resty/resty/v2"
)

type remoteCredentials struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type remoteIdentity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// RemoteAuthenticator delegates credential checks to an identity provider
// exposing POST /authenticate.
type RemoteAuthenticator struct {
	client *resty.Client
}

// NewRemoteAuthenticator creates an authenticator for the provider at baseURL
func NewRemoteAuthenticator(baseURL string, timeout time.Duration) *RemoteAuthenticator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &RemoteAuthenticator{client: client}
}

// Authenticate implements Authenticator. 401 and 403 mean rejected
// credentials; any other non-2xx answer is a provider failure.
func (a *RemoteAuthenticator) Authenticate(ctx context.Context, identifier, secret string) (*model.Identity, error) {
	var out remoteIdentity
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(remoteCredentials{Identifier: identifier, Secret: secret}).
		SetResult(&out).
		Post("/authenticate")
	if err != nil {
		return nil, fmt.Errorf("identity provider request: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized, resp.StatusCode() == http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case resp.IsError():
		return nil, fmt.Errorf("identity provider returned %s", resp.Status())
	}

	identity := model.Identity{UserID: out.UserID, Name: out.Name, Role: model.Role(out.Role)}
	if identity.UserID == "" || !identity.Role.Valid() {
		return nil, fmt.Errorf("identity provider returned an unusable identity (user %q, role %q)", out.UserID, out.Role)
	}
	return &identity, nil
}
