package foundry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Scope is the audience of Azure AI Foundry project tokens.
const Scope = "https://ai.azure.com/.default"

// DefaultAuthorityHost is the public-cloud Microsoft Entra endpoint.
const DefaultAuthorityHost = "https://login.microsoftonline.com"

// CredentialConfig selects how bearer tokens are obtained. The first populated
// option wins: static token, then client secret, then DefaultAzureCredential.
type CredentialConfig struct {
	AccessToken   string
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string
}

func (c CredentialConfig) hasClientSecret() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// NewTokenSource builds the token source described by cfg. The result caches
// tokens until they expire.
func NewTokenSource(ctx context.Context, cfg CredentialConfig) (oauth2.TokenSource, error) {
	switch {
	case cfg.AccessToken != "":
		slog.Debug("using static bearer token")
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"}), nil

	case cfg.hasClientSecret():
		host := cfg.AuthorityHost
		if host == "" {
			host = DefaultAuthorityHost
		}
		tokenURL, err := url.JoinPath(host, url.PathEscape(cfg.TenantID), "oauth2", "v2.0", "token")
		if err != nil {
			return nil, fmt.Errorf("build token url: %w", err)
		}
		slog.Debug("using client secret credential", "tenant", cfg.TenantID, "client_id", cfg.ClientID)
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		return cc.TokenSource(ctx), nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("create default azure credential: %w", err)
	}
	slog.Debug("using default azure credential chain")
	return &azureTokenSource{ctx: ctx, cred: cred, scopes: []string{Scope}}, nil
}

// azureTokenSource adapts an azcore credential to oauth2.TokenSource.
type azureTokenSource struct {
	ctx    context.Context
	cred   azcore.TokenCredential
	scopes []string
}

func (s *azureTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cred.GetToken(s.ctx, policy.TokenRequestOptions{Scopes: s.scopes})
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.Token, TokenType: "Bearer", Expiry: tok.ExpiresOn}, nil
}

// NewHTTPClient returns a client that signs every request with a token from ts.
// A zero timeout leaves requests bounded only by their context.
func NewHTTPClient(ctx context.Context, ts oauth2.TokenSource, timeout time.Duration) *http.Client {
	c := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, ts))
	c.Timeout = timeout
	return c
}

// IsAuthError reports whether err came from acquiring a token rather than from the API.
func IsAuthError(err error) bool {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return true
	}
	var ae *azidentity.AuthenticationFailedError
	return errors.As(err, &ae)
}
