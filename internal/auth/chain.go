package auth

import (
	"context"
	"errors"
	"fmt"

	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// Chain asks each provider in turn and returns the first token.
type Chain struct {
	Providers []TokenProvider
	Log       logrus.FieldLogger
}

func (c *Chain) Token(ctx context.Context, resource string) (string, error) {
	var errs []error
	for _, p := range c.Providers {
		token, err := p.Token(ctx, resource)
		if err == nil {
			if c.Log != nil {
				c.Log.WithFields(logrus.Fields{
					"resource": ResourceName(resource),
					"provider": fmt.Sprintf("%T", p),
				}).Debug("token acquired")
			}
			return token, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no token providers configured"))
	}
	return "", apperrors.AuthError(resource, errors.Join(errs...))
}
