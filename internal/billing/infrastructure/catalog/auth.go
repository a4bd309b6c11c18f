package catalog

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials authenticates the catalog client against the catalog
// service's token endpoint.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Enabled reports whether credentials were configured.
func (c ClientCredentials) Enabled() bool {
	return c.ClientID != "" && c.TokenURL != ""
}

// NewAuthenticatedClient returns an HTTP client that fetches and refreshes
// bearer tokens with the client credentials grant. Tokens are cached until
// they expire.
func NewAuthenticatedClient(ctx context.Context, creds ClientCredentials, timeout time.Duration) *http.Client {
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		Scopes:       creds.Scopes,
	}
	client := cfg.Client(ctx)
	client.Timeout = timeout
	return client
}
