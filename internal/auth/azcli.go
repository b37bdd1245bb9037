package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// AzureCLIProvider gets tokens from the signed-in Azure CLI session.
type AzureCLIProvider struct {
	// Path is the az executable, "az" when empty.
	Path    string
	Timeout time.Duration
	Retry   *apperrors.RetryConfig
	Log     logrus.FieldLogger
}

// NewAzureCLIProvider creates a provider running path with a per-call timeout.
func NewAzureCLIProvider(path string, timeout time.Duration) *AzureCLIProvider {
	if path == "" {
		path = "az"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retry := apperrors.DefaultRetryConfig()
	retry.MaxRetries = 2
	return &AzureCLIProvider{
		Path:    path,
		Timeout: timeout,
		Retry:   retry,
		Log:     logrus.StandardLogger(),
	}
}

// Token runs `az account get-access-token --resource R --query accessToken -o tsv`.
// A failing command is retried with backoff; a missing executable is not.
func (p *AzureCLIProvider) Token(ctx context.Context, resource string) (string, error) {
	var token string
	retry := *p.Retry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		p.Log.WithFields(logrus.Fields{
			"resource": ResourceName(resource),
			"attempt":  attempt,
			"delay":    delay.String(),
		}).WithError(err).Warn("az token request failed, retrying")
	}

	err := apperrors.Retry(ctx, &retry, func(ctx context.Context) error {
		t, err := p.run(ctx, resource)
		if err != nil {
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		return "", apperrors.AuthError(resource, err)
	}
	return token, nil
}

func (p *AzureCLIProvider) run(ctx context.Context, resource string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// #nosec G204 - the executable comes from configuration
	cmd := exec.CommandContext(ctx, p.Path, "account", "get-access-token",
		"--resource", resource, "--query", "accessToken", "-o", "tsv")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.Wrap(err, apperrors.ErrCodeAuth,
				fmt.Sprintf("az executable %q not found", p.Path))
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeAuth,
			"az error: "+strings.TrimSpace(stderr.String())).AsRecoverable()
	}

	token := strings.TrimSpace(stdout.String())
	if token == "" {
		return "", apperrors.New(apperrors.ErrCodeAuth, "az returned an empty token").AsRecoverable()
	}
	return token, nil
}
