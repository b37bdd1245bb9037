package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "fabdrop/pkg/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// DefaultTokenLifetime is assumed for tokens whose expiry is not reported.
const DefaultTokenLifetime = 45 * time.Minute

// Scope returns the azcore scope for resource.
func Scope(resource string) string {
	return strings.TrimSuffix(resource, "/") + "/.default"
}

// Credential adapts a TokenProvider to azcore.TokenCredential so azcore
// pipelines and the azblob client can use it.
type Credential struct {
	Provider TokenProvider
	Lifetime time.Duration
}

// NewCredential wraps provider.
func NewCredential(provider TokenProvider) *Credential {
	return &Credential{Provider: provider, Lifetime: DefaultTokenLifetime}
}

// GetToken implements azcore.TokenCredential. The first scope selects the resource.
func (c *Credential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if len(opts.Scopes) == 0 {
		return azcore.AccessToken{}, apperrors.New(apperrors.ErrCodeAuth, "token requested without a scope")
	}
	resource := strings.TrimSuffix(opts.Scopes[0], "/.default")
	token, err := c.Provider.Token(ctx, resource)
	if err != nil {
		var appErr *apperrors.AppError
		if ctx.Err() == nil && !errors.As(err, &appErr) {
			err = apperrors.AuthError(resource, err)
		}
		return azcore.AccessToken{}, err
	}
	lifetime := c.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return azcore.AccessToken{Token: token, ExpiresOn: time.Now().Add(lifetime)}, nil
}
