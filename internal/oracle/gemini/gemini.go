package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"financify/internal/core"
	ports "financify/internal/oracle"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-1.5-flash"

// Client talks to the Gemini API. It holds no API key: every call resolves
// the key through the credential provider and builds a short-lived genai
// client around the shared transport.
type Client struct {
	creds    ports.CredentialProvider
	model    string
	endpoint string
	http     *http.Client
}

// Ensure interface conformance
var _ ports.Oracle = (*Client)(nil)

type Option func(*Client)

// WithModel overrides the model name (without the "models/" prefix).
func WithModel(model string) Option {
	return func(c *Client) {
		if m := strings.TrimSpace(model); m != "" {
			c.model = strings.TrimPrefix(m, "models/")
		}
	}
}

// WithEndpoint points the client at another base URL, e.g. a test server.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithTransport replaces the pooled transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = rt }
}

// New creates a Gemini client. The API key is resolved through creds on every
// call so keys entered during a session take effect immediately.
func New(creds ports.CredentialProvider, opts ...Option) *Client {
	c := &Client{
		creds: creds,
		model: DefaultModel,
		http: &http.Client{
			Transport: newPooledTransport(),
			Timeout:   90 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GenerateText sends a text-only prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "generate_text", []*genai.Part{genai.NewPartFromText(prompt)})
}

// GenerateFromImage sends the prompt followed by the image as inline data.
func (c *Client) GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", &core.OracleError{Op: "generate_from_image", Kind: core.OracleOther, Err: errors.New("empty image")}
	}
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	return c.generate(ctx, "generate_from_image", parts)
}

func (c *Client) generate(ctx context.Context, op string, parts []*genai.Part) (string, error) {
	client, err := c.client(ctx)
	if err != nil {
		return "", &core.OracleError{Op: op, Kind: classify(ctx, err), Err: err}
	}

	start := time.Now()
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		kind := classify(ctx, err)
		slog.WarnContext(ctx, "Gemini request failed", "op", op, "model", c.model, "kind", kind, "duration", time.Since(start), "error", err)
		return "", &core.OracleError{Op: op, Kind: kind, Err: err}
	}

	text := responseText(resp)
	if text == "" {
		return "", &core.OracleError{Op: op, Kind: core.OracleEmpty, Err: errors.New("empty response from model")}
	}
	slog.DebugContext(ctx, "Gemini request completed", "op", op, "model", c.model, "duration", time.Since(start), "chars", len(text))
	return text, nil
}

// client builds a genai client for the key in effect for ctx. Nothing is
// retained once the call returns.
func (c *Client) client(ctx context.Context) (*genai.Client, error) {
	if c.creds == nil {
		return nil, ports.ErrMissingCredentials
	}
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.http,
	}
	if c.endpoint != "" {
		cfg.HTTPOptions.BaseURL = c.endpoint
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Text())
}

func classify(ctx context.Context, err error) core.OracleErrorKind {
	if errors.Is(err, ports.ErrMissingCredentials) {
		return core.OracleCredentials
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.OracleTimeout
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return core.OracleAuth
		case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "api key"):
			return core.OracleAuth
		case apiErr.Code == http.StatusTooManyRequests:
			return core.OracleQuota
		case apiErr.Code >= 500:
			return core.OracleNetwork
		}
		return core.OracleOther
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return core.OracleTimeout
		}
		return core.OracleNetwork
	}
	return core.OracleOther
}

// newPooledTransport creates a transport for the Gemini API with connection
// pooling and keep-alive settings.
func newPooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
