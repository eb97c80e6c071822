package dynform

import (
	"embed"
	"io/fs"
)

//go:embed examples/forms/*.json examples/catalog.yaml
var embeddedExamples embed.FS

// ExamplesFS exposes the bundled example forms (under forms/) and the domain
// value catalog (catalog.yaml) so tools can serve a working demo without any
// external files.
func ExamplesFS() fs.FS {
	sub, err := fs.Sub(embeddedExamples, "examples")
	if err != nil {
		return embeddedExamples
	}
	return sub
}
