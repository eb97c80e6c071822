package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-dynform/pkg/options"
)

const defaultTimeout = 15 * time.Second

// Option customises a Source.
type Option func(*Source)

// WithHTTPClient overrides the client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithTimeout bounds a single request. Zero disables the per-request bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithLogger routes request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Source reads domain values from `GET {base}/domain/{category}?parentCode={parent}`.
type Source struct {
	base    *url.URL
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ options.Source = (*Source)(nil)

// New builds a Source rooted at baseURL.
func New(baseURL string, opts ...Option) (*Source, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("httpsource: base url is required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("httpsource: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("httpsource: unsupported scheme %q", base.Scheme)
	}
	s := &Source{
		base:    base,
		client:  http.DefaultClient,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Fetch implements options.Source.
func (s *Source) Fetch(ctx context.Context, category, parent string) ([]options.DomainValue, error) {
	if category == "" {
		return nil, errors.New("httpsource: category is required")
	}

	reqCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	endpoint := s.endpoint(category, parent)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("httpsource: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	values, err := decode(data)
	if err != nil {
		return nil, err
	}
	for i := range values {
		values[i].DisplayText = sanitizeText(values[i].DisplayText)
	}
	s.logger.Debug("httpsource: fetched", "category", category, "parent", parent, "count", len(values))
	return values, nil
}

func (s *Source) endpoint(category, parent string) string {
	u := *s.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/domain/" + url.PathEscape(category)
	u.RawPath = ""
	q := u.Query()
	if parent != "" {
		q.Set("parentCode", parent)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// decode accepts a bare array or a `{"data": [...]}` envelope.
func decode(data []byte) ([]options.DomainValue, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []options.DomainValue{}, nil
	}
	if trimmed[0] == '{' {
		var envelope struct {
			Data []options.DomainValue `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("httpsource: decode envelope: %w", err)
		}
		if envelope.Data == nil {
			return []options.DomainValue{}, nil
		}
		return envelope.Data, nil
	}
	var values []options.DomainValue
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("httpsource: decode: %w", err)
	}
	return values, nil
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// sanitizeText strips markup from service-provided labels. The policy output
// is HTML-escaped; labels are plain text, so entities are decoded again.
func sanitizeText(raw string) string {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(raw)))
}
