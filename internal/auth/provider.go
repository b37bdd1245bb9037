package auth

import (
	"context"
	"strings"
	"sync"

	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/sirupsen/logrus"
)

// Resources tokens are requested for.
const (
	ResourceFabric  = "https://api.fabric.microsoft.com"
	ResourcePowerBI = "https://analysis.windows.net/powerbi/api"
	ResourceDevOps  = "499b84ac-1321-427f-aa17-267ca6975798"
	ResourceStorage = "https://storage.azure.com"
)

// resourceNames gives each known resource the short name used for
// environment variables and stored credentials.
var resourceNames = map[string]string{
	ResourceFabric:  "fabric",
	ResourcePowerBI: "powerbi",
	ResourceDevOps:  "devops",
	ResourceStorage: "storage",
}

// TokenProvider returns a bearer token for a resource.
type TokenProvider interface {
	Token(ctx context.Context, resource string) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context, resource string) (string, error)

func (f TokenFunc) Token(ctx context.Context, resource string) (string, error) {
	return f(ctx, resource)
}

// ResourceName maps a resource to its short name. Short names and unknown
// resources are returned lower-cased.
func ResourceName(resource string) string {
	if name, ok := resourceNames[resource]; ok {
		return name
	}
	return strings.ToLower(resource)
}

// ResolveResource accepts a short name (fabric, powerbi, devops, storage) or a
// full resource and returns the full resource.
func ResolveResource(nameOrResource string) string {
	for resource, name := range resourceNames {
		if strings.EqualFold(name, nameOrResource) {
			return resource
		}
	}
	return nameOrResource
}

// Cache remembers tokens per resource for the lifetime of the process.
type Cache struct {
	provider TokenProvider
	mu       sync.Mutex
	tokens   map[string]string
}

// NewCache wraps provider.
func NewCache(provider TokenProvider) *Cache {
	return &Cache{provider: provider, tokens: make(map[string]string)}
}

func (c *Cache) Token(ctx context.Context, resource string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token, ok := c.tokens[resource]; ok {
		return token, nil
	}
	token, err := c.provider.Token(ctx, resource)
	if err != nil {
		return "", err
	}
	c.tokens[resource] = token
	return token, nil
}

// NewProvider builds the provider selected by cfg.Provider: azcli, env,
// keyring or chain (env, then keyring, then azcli).
func NewProvider(cfg models.AuthConfig, log logrus.FieldLogger) (TokenProvider, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cli := NewAzureCLIProvider(cfg.AzPath, cfg.Timeout)
	cli.Log = log

	switch strings.ToLower(cfg.Provider) {
	case "azcli", "az":
		return NewCache(cli), nil
	case "env":
		return NewCache(EnvProvider{}), nil
	case "keyring":
		store, err := NewStore("")
		if err != nil {
			return nil, err
		}
		return NewCache(store), nil
	case "", "chain":
		providers := []TokenProvider{EnvProvider{}}
		if store, err := NewStore(""); err == nil {
			providers = append(providers, store)
		} else {
			log.WithError(err).Debug("credential store unavailable")
		}
		providers = append(providers, cli)
		return NewCache(&Chain{Providers: providers, Log: log}), nil
	default:
		return nil, apperrors.ConfigError("unknown auth provider "+cfg.Provider, "auth.provider")
	}
}
