package dynform

import (
	"github.com/goliatone/go-dynform/pkg/library"
	"github.com/goliatone/go-dynform/pkg/loader"
	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/resolver"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// NewLoader constructs a document loader.
func NewLoader(options ...loader.Option) *loader.Loader {
	return loader.New(options...)
}

// NewResolver constructs a schema resolver over lib, or over the built-in
// library when lib is nil.
func NewResolver(lib *library.Library, options ...resolver.Option) *resolver.Resolver {
	if lib == nil {
		lib = library.Default()
	}
	return resolver.New(lib, options...)
}

// BuildModel resolves form against the built-in library and generates its
// model without binding a store.
func BuildModel(form schema.FormSchema) (*model.FormModel, error) {
	resolved, err := NewResolver(nil).Resolve(form)
	if err != nil {
		return nil, err
	}
	return model.NewGenerator().ToModel(resolved)
}
