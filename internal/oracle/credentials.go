package oracle

import (
	"context"
	"errors"
	"os"
	"strings"
)

// ErrMissingCredentials is returned when no provider yields an API key.
var ErrMissingCredentials = errors.New("missing oracle API key")

// CredentialProvider supplies the API key used for an oracle call.
type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// EnvCredentials reads the key from an environment variable
// (GEMINI_API_KEY when Var is empty).
type EnvCredentials struct {
	Var string
}

func (e EnvCredentials) APIKey(context.Context) (string, error) {
	name := e.Var
	if name == "" {
		name = "GEMINI_API_KEY"
	}
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, nil
	}
	return "", ErrMissingCredentials
}

// StaticCredentials always returns the same key.
type StaticCredentials string

func (s StaticCredentials) APIKey(context.Context) (string, error) {
	if v := strings.TrimSpace(string(s)); v != "" {
		return v, nil
	}
	return "", ErrMissingCredentials
}

type apiKeyCtxKey struct{}

// WithAPIKey attaches a key entered by the user to ctx. Blank keys are ignored.
func WithAPIKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

// ContextCredentials returns the key stored by WithAPIKey.
type ContextCredentials struct{}

func (ContextCredentials) APIKey(ctx context.Context) (string, error) {
	if v, ok := ctx.Value(apiKeyCtxKey{}).(string); ok && v != "" {
		return v, nil
	}
	return "", ErrMissingCredentials
}

// ChainCredentials tries each provider in order and returns the first key.
type ChainCredentials []CredentialProvider

func (c ChainCredentials) APIKey(ctx context.Context) (string, error) {
	for _, p := range c {
		key, err := p.APIKey(ctx)
		if err == nil && key != "" {
			return key, nil
		}
		if err != nil && !errors.Is(err, ErrMissingCredentials) {
			return "", err
		}
	}
	return "", ErrMissingCredentials
}

// HasKey reports whether p can currently produce a key.
func HasKey(ctx context.Context, p CredentialProvider) bool {
	if p == nil {
		return false
	}
	key, err := p.APIKey(ctx)
	return err == nil && key != ""
}
