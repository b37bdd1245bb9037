package auth

import (
	"context"
	"os"
	"regexp"
	"strings"

	apperrors "fabdrop/pkg/errors"
)

var nonIdent = regexp.MustCompile(`[^A-Z0-9]+`)

// EnvProvider reads tokens from FABDROP_TOKEN_<NAME>, e.g. FABDROP_TOKEN_FABRIC.
type EnvProvider struct{}

// EnvVar returns the variable consulted for resource.
func EnvVar(resource string) string {
	name := nonIdent.ReplaceAllString(strings.ToUpper(ResourceName(resource)), "_")
	return "FABDROP_TOKEN_" + strings.Trim(name, "_")
}

func (EnvProvider) Token(_ context.Context, resource string) (string, error) {
	key := EnvVar(resource)
	if token := strings.TrimSpace(os.Getenv(key)); token != "" {
		return token, nil
	}
	return "", apperrors.NotFound("environment variable", key)
}
