package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/goliatone/go-dynform/pkg/library"
	"github.com/goliatone/go-dynform/pkg/schema"
)

const defaultTimeout = 30 * time.Second

// Option customises a Loader.
type Option func(*Loader)

// WithFS enables SourceKindFS documents.
func WithFS(files fs.FS) Option {
	return func(l *Loader) {
		l.fs = files
	}
}

// WithHTTPClient enables URL documents with client.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if client != nil {
			l.http = client
		}
	}
}

// WithAllowHTTP enables URL documents with a default client.
func WithAllowHTTP(allow bool) Option {
	return func(l *Loader) {
		l.allowHTTP = allow
	}
}

// WithTimeout bounds URL requests.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger routes load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loader reads form and library documents from files, an fs.FS, or HTTP.
type Loader struct {
	fs        fs.FS
	http      *http.Client
	allowHTTP bool
	timeout   time.Duration
	logger    *slog.Logger
}

// New builds a Loader. URL sources are refused unless WithAllowHTTP or
// WithHTTPClient is given.
func New(opts ...Option) *Loader {
	l := &Loader{timeout: defaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.http != nil {
		l.allowHTTP = true
	} else if l.allowHTTP {
		l.http = &http.Client{Timeout: l.timeout}
	}
	return l
}

// Load fetches src.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("loader: source is nil")
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = loadFile(ctx, src.Location())
	case schema.SourceKindFS:
		data, err = loadFromFS(ctx, l.fs, src.Location())
	case schema.SourceKindURL:
		if !l.allowHTTP {
			return schema.Document{}, errors.New("loader: http support disabled")
		}
		data, err = loadHTTP(ctx, l.http, src.Location(), l.timeout)
	default:
		err = fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return schema.Document{}, fmt.Errorf("loader: %s: %w", src.Location(), err)
	}
	l.logger.Debug("loader: loaded document", "kind", src.Kind(), "location", src.Location(), "bytes", len(data))
	return schema.NewDocument(src, data)
}

// LoadForm fetches and parses a form schema.
func (l *Loader) LoadForm(ctx context.Context, src schema.Source) (schema.FormSchema, error) {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return schema.FormSchema{}, err
	}
	form, err := doc.Form()
	if err != nil {
		return schema.FormSchema{}, fmt.Errorf("loader: %s: %w", doc.Location(), err)
	}
	return form, nil
}

// LoadLibrary fetches and parses a control library document.
func (l *Loader) LoadLibrary(ctx context.Context, src schema.Source) (*library.Library, error) {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	lib, err := library.Load(doc.Raw())
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", doc.Location(), err)
	}
	return lib, nil
}
