package dynform

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-dynform/pkg/loader"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/orchestrator"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/testsupport"
)

func exampleOptions(t *testing.T) []orchestrator.Option {
	t.Helper()
	raw, err := fs.ReadFile(ExamplesFS(), "catalog.yaml")
	if err != nil {
		t.Fatalf("read catalog: %v", err)
	}
	catalog, err := options.LoadCatalog(raw)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return []orchestrator.Option{
		orchestrator.WithOptionSource(catalog),
		orchestrator.WithLoader(loader.New(loader.WithFS(ExamplesFS()), loader.WithLogger(logger))),
		orchestrator.WithLogger(logger),
	}
}

func TestCompileEmployeeExample(t *testing.T) {
	t.Parallel()

	inst, err := Compile(context.Background(), schema.SourceFromFS("forms/employee.json"),
		map[string]any{"countryId": "CA", "address": map[string]any{"postal": map[string]any{"zip": "12345"}}},
		exampleOptions(t)...)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer inst.Close()
	inst.Wait()

	goldenPath := filepath.Join("testdata", "employee_paths.golden.json")
	gotPaths := map[string]string(inst.Model.PathMap())
	testsupport.WriteGolden(t, goldenPath, gotPaths)
	var wantPaths map[string]string
	testsupport.MustLoadGolden(t, goldenPath, &wantPaths)
	if diff := testsupport.CompareGolden(wantPaths, gotPaths); diff != "" {
		t.Fatalf("path map mismatch (-want +got):\n%s", diff)
	}

	states, ok := inst.Cascade("stateId")
	if !ok {
		t.Fatal("expected a state cascade")
	}
	var codes []string
	for _, v := range states.Options() {
		codes = append(codes, v.Code)
	}
	if diff := cmp.Diff([]string{"ON", "QC"}, codes); diff != "" {
		t.Fatalf("state options mismatch (-want +got):\n%s", diff)
	}

	if st, _ := inst.Watcher.State("priorEmployer"); st.Visible {
		t.Fatal("prior employer should start hidden")
	}
	if err := inst.Store.Set("hasPriorEmployer", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if st, _ := inst.Watcher.State("priorEmployer"); !st.Visible || !st.Required {
		t.Fatalf("expected prior employer visible and required, got %+v", st)
	}
	if _, ok := inst.Validate()["priorEmployer"]; !ok {
		t.Fatal("expected prior employer to fail required validation")
	}
}

func TestCompileDocumentAndBuildModel(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"sections": ["employee.firstName", {"key": "nick", "type": "TEXT"}]}`)
	inst, err := CompileDocument(context.Background(), raw, map[string]any{"firstName": "Ada"}, exampleOptions(t)...)
	if err != nil {
		t.Fatalf("CompileDocument: %v", err)
	}
	defer inst.Close()
	if diff := cmp.Diff(map[string]any{"firstName": "Ada", "nick": ""}, inst.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	m, err := BuildModel(testsupport.LoadForm(t, filepath.Join("examples", "forms", "employee.json")))
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	for _, key := range []string{"firstName", "countryId", "zip"} {
		if _, ok := m.GetControl(key); !ok {
			t.Fatalf("expected %s in the built model", key)
		}
	}
}
