package voicelive

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// tokenScope is the resource scope for Voice Live bearer tokens
const tokenScope = "https://ai.azure.com/.default"

// Credential supplies authentication headers for the upstream connection.
// It is consumed once per session, at dial time.
type Credential interface {
	Apply(ctx context.Context, header http.Header) error
}

// APIKeyCredential authenticates with a static resource API key
type APIKeyCredential struct {
	Key string
}

func (c APIKeyCredential) Apply(_ context.Context, header http.Header) error {
	if c.Key == "" {
		return fmt.Errorf("empty API key")
	}
	header.Set("api-key", c.Key)
	return nil
}

// ServicePrincipalCredential mints a bearer token through the client
// credentials flow. Tokens are requested per dial; the underlying azidentity
// credential caches and refreshes internally.
type ServicePrincipalCredential struct {
	cred *azidentity.ClientSecretCredential
}

// NewServicePrincipalCredential builds a credential from a tenant/client/secret triplet
func NewServicePrincipalCredential(tenantID, clientID, clientSecret string) (*ServicePrincipalCredential, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("create service principal credential: %w", err)
	}
	return &ServicePrincipalCredential{cred: cred}, nil
}

func (c *ServicePrincipalCredential) Apply(ctx context.Context, header http.Header) error {
	token, err := c.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{tokenScope}})
	if err != nil {
		return fmt.Errorf("acquire bearer token: %w", err)
	}
	header.Set("Authorization", "Bearer "+token.Token)
	return nil
}
