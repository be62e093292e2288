// Package oauth implements the token refresh lifecycle shared by the
// OAuth-based connectors (Drive, OneDrive, SharePoint).
//
// The state machine is: Authenticated -> (401 observed) -> Refreshing ->
// Authenticated | Unauthenticated. A successful refresh replaces the access
// token in the connector's parameter bag. A failed refresh clears both the
// access and refresh tokens, forcing a fresh interactive grant upstream.
package oauth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/custodia-labs/syncbridge/internal/connectors/httpclient"
	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/logger"
)

// Parameter bag keys shared by the OAuth connectors.
const (
	// KeyToken is the access token.
	KeyToken = "token"

	// KeyRefresh is the refresh token.
	KeyRefresh = "refresh"

	// KeyClientID is the OAuth app client id (form-style grants).
	KeyClientID = "client_id"

	// KeyRefreshEndpoint is the relay endpoint (endpoint-style grants).
	KeyRefreshEndpoint = "refresh_endpoint"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher struct {
	client *httpclient.Client
}

// NewRefresher creates a Refresher with a default REST client.
func NewRefresher() *Refresher {
	return &Refresher{client: httpclient.New()}
}

// RefreshForm performs a form-encoded refresh_token grant against tokenURL
// (the Microsoft identity platform style). On success the params bag holds
// the new access and refresh tokens and true is returned. On failure both
// tokens are cleared and false is returned.
func (r *Refresher) RefreshForm(
	ctx context.Context, params domain.ConnectorParameters, tokenURL, scope string,
) (bool, error) {
	form := url.Values{}
	form.Set("client_id", params.String(KeyClientID))
	form.Set("refresh_token", params.String(KeyRefresh))
	form.Set("grant_type", "refresh_token")
	form.Set("scope", scope)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := r.client.PostForm(ctx, tokenURL, form.Encode(), nil, &resp); err != nil {
		ClearTokens(params)
		return false, fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		ClearTokens(params)
		return false, nil
	}

	params[KeyToken] = resp.AccessToken
	params[KeyRefresh] = resp.RefreshToken
	return true, nil
}

// RefreshEndpoint performs an endpoint-style refresh: GET
// endpoint?refresh_token=... answering {"token": "..."} (the relay used by
// the Drive connector). Token replacement and clearing follow the same
// policy as RefreshForm.
func (r *Refresher) RefreshEndpoint(ctx context.Context, params domain.ConnectorParameters) (bool, error) {
	endpoint := params.String(KeyRefreshEndpoint)
	if endpoint == "" {
		ClearTokens(params)
		return false, nil
	}

	target := fmt.Sprintf("%s?refresh_token=%s", endpoint, url.QueryEscape(params.String(KeyRefresh)))
	var resp struct {
		Token string `json:"token"`
	}
	if err := r.client.GetJSON(ctx, target, nil, &resp); err != nil {
		ClearTokens(params)
		return false, fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}

	if resp.Token == "" {
		ClearTokens(params)
		return false, nil
	}

	params[KeyToken] = resp.Token
	return true, nil
}

// ClearTokens removes both tokens from the bag, transitioning the connector
// to the unauthenticated state.
func ClearTokens(params domain.ConnectorParameters) {
	if params == nil {
		return
	}
	logger.Debug("clearing stored tokens, re-authentication required")
	params[KeyToken] = ""
	params[KeyRefresh] = ""
}
