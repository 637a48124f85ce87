package foundry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewTokenSource_Static(t *testing.T) {
	ts, err := NewTokenSource(context.Background(), CredentialConfig{AccessToken: "abc", ClientID: "ignored"})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
}

func TestNewTokenSource_ClientSecret(t *testing.T) {
	var form url.Values
	var path string
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"issued","token_type":"Bearer","expires_in":3600}`)
	}))
	defer authority.Close()

	ts, err := NewTokenSource(context.Background(), CredentialConfig{
		TenantID:      "tenant-1",
		ClientID:      "client-1",
		ClientSecret:  "s3cret",
		AuthorityHost: authority.URL,
	})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "issued", tok.AccessToken)
	assert.Equal(t, "/tenant-1/oauth2/v2.0/token", path)
	assert.Equal(t, "client_credentials", form.Get("grant_type"))
	assert.Equal(t, "client-1", form.Get("client_id"))
	assert.Equal(t, "s3cret", form.Get("client_secret"))
	assert.Equal(t, Scope, form.Get("scope"))
}

func TestNewTokenSource_ClientSecretRejected(t *testing.T) {
	authority := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client","error_description":"bad secret"}`)
	}))
	defer authority.Close()

	ts, err := NewTokenSource(context.Background(), CredentialConfig{
		TenantID: "t", ClientID: "c", ClientSecret: "wrong", AuthorityHost: authority.URL,
	})
	require.NoError(t, err)

	_, err = ts.Token()
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

type fakeCredential struct {
	scopes []string
	err    error
}

func (f *fakeCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.scopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: "from-azure", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestAzureTokenSource(t *testing.T) {
	cred := &fakeCredential{}
	ts := &azureTokenSource{ctx: context.Background(), cred: cred, scopes: []string{Scope}}

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-azure", tok.AccessToken)
	assert.True(t, tok.Valid())
	assert.Equal(t, []string{Scope}, cred.scopes)

	cred.err = errors.New("az login required")
	_, err = ts.Token()
	assert.EqualError(t, err, "az login required")
}

func TestNewHTTPClient_SignsRequests(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	hc := NewHTTPClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "xyz"}), 5*time.Second)
	assert.Equal(t, 5*time.Second, hc.Timeout)

	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer xyz", auth)
}

func TestIsAuthError(t *testing.T) {
	assert.False(t, IsAuthError(nil))
	assert.False(t, IsAuthError(errors.New("boom")))
	assert.True(t, IsAuthError(&url.Error{Op: "Post", URL: "x", Err: &oauth2.RetrieveError{}}))
}
