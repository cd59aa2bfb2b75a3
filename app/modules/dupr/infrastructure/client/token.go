package duprclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	duprdomain "github.com/Black-And-White-Club/dupr-bridge/app/modules/dupr/domain"
	"github.com/Black-And-White-Club/dupr-bridge/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider exchanges the configured client credentials for a bearer token.
type TokenProvider struct {
	creds      clientcredentials.Config
	httpClient *http.Client
}

// NewTokenProvider builds a provider for cfg. httpClient may be nil.
func NewTokenProvider(cfg config.DUPRConfig, httpClient *http.Client) *TokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &TokenProvider{
		creds: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		httpClient: httpClient,
	}
}

// Token performs a fresh exchange. Every failure wraps ErrTokenUnavailable.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.creds.TokenURL == "" || p.creds.ClientID == "" {
		return "", fmt.Errorf("%w: credentials are not configured", duprdomain.ErrTokenUnavailable)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.creds.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return "", fmt.Errorf("%w: token endpoint returned %d", duprdomain.ErrTokenUnavailable, retrieveErr.Response.StatusCode)
		}
		return "", fmt.Errorf("%w: %v", duprdomain.ErrTokenUnavailable, err)
	}
	if !tok.Valid() {
		return "", fmt.Errorf("%w: exchange returned an empty or expired token", duprdomain.ErrTokenUnavailable)
	}
	return tok.AccessToken, nil
}
