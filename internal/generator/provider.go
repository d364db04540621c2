// Package generator turns prompts into plans and library entries using an
// external text-generation service. Output is validated at this boundary;
// nothing malformed reaches the plan engine.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alcyxob/neuralfit/internal/retry"

	"github.com/rs/zerolog"
)

// Provider completes a prompt. With jsonMode the service is asked to answer
// with JSON only; callers still strip fences and validate.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

const (
	defaultModel   = "openai"
	defaultTimeout = 90 * time.Second
	maxErrorBody   = 512
)

// HTTPProvider calls a GET-style text endpoint: <baseURL>/<escaped prompt>?model=...&json=true.
type HTTPProvider struct {
	name    string
	baseURL string
	model   string
	client  *http.Client
	retry   retry.Config
	log     zerolog.Logger
}

// HTTPOption configures the provider.
type HTTPOption func(*HTTPProvider)

func WithModel(model string) HTTPOption {
	return func(p *HTTPProvider) { p.model = model }
}

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = c }
}

func WithRetry(cfg retry.Config) HTTPOption {
	return func(p *HTTPProvider) { p.retry = cfg }
}

func WithLogger(l zerolog.Logger) HTTPOption {
	return func(p *HTTPProvider) { p.log = l }
}

func WithName(name string) HTTPOption {
	return func(p *HTTPProvider) { p.name = name }
}

// NewHTTPProvider constructs a provider for baseURL.
func NewHTTPProvider(baseURL string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		name:    "http",
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   defaultModel,
		client:  &http.Client{Timeout: defaultTimeout},
		retry:   retry.DefaultConfig(),
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *HTTPProvider) Name() string { return p.name }

// Complete performs the request with retries on transport errors, 429 and 5xx.
func (p *HTTPProvider) Complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	q := url.Values{}
	q.Set("model", p.model)
	if jsonMode {
		q.Set("json", "true")
	}
	endpoint := p.baseURL + "/" + url.PathEscape(prompt) + "?" + q.Encode()

	var text string
	attempt := 0
	err := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		attempt++
		out, err := p.do(ctx, endpoint)
		if err != nil {
			p.log.Warn().Err(err).Str("provider", p.name).Int("attempt", attempt).Msg("completion attempt failed")
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return retry.Permanent(err)
			}
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *HTTPProvider) do(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json, text/plain")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", &StatusError{Provider: p.name, Code: resp.StatusCode, Body: snippet}
	}
	return strings.TrimSpace(string(body)), nil
}

// FallbackProvider tries each provider in order and returns the first success.
type FallbackProvider struct {
	providers []Provider
	log       zerolog.Logger
}

func NewFallbackProvider(logger zerolog.Logger, providers ...Provider) *FallbackProvider {
	return &FallbackProvider{providers: providers, log: logger}
}

func (f *FallbackProvider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ">")
}

func (f *FallbackProvider) Complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if len(f.providers) == 0 {
		return "", errors.New("no generation provider configured")
	}
	var errs []error
	for _, p := range f.providers {
		text, err := p.Complete(ctx, prompt, jsonMode)
		if err == nil {
			return text, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		f.log.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed, trying next")
	}
	return "", errors.Join(errs...)
}
