package tree

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/schema"
)

func orgChart() []options.DomainValue {
	return []options.DomainValue{
		{Code: "HQ", DisplayText: "Headquarters"},
		{Code: "ENG", DisplayText: "Engineering", ParentCode: "HQ"},
		{Code: "OPS", DisplayText: "Operations", ParentCode: "HQ"},
		{Code: "PLAT", DisplayText: "Platform", ParentCode: "ENG"},
		{Code: "WEB", DisplayText: "Web", ParentCode: "ENG"},
		{Code: "LOST", DisplayText: "Lost team", ParentCode: "GONE"},
	}
}

func flatCodes(rows []FlatNode) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Node.Code)
	}
	return out
}

func rootCodes(f *Forest) []string {
	out := []string{}
	for _, r := range f.Roots() {
		out = append(out, r.Code)
	}
	return out
}

func assertCodes(t *testing.T, want, got []string) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
}

func mustFind(t *testing.T, f *Forest, code string) *Node {
	t.Helper()
	n, ok := f.Find(code)
	if !ok {
		t.Fatalf("node %q not found", code)
	}
	return n
}

func TestBuildGroupsByParent(t *testing.T) {
	t.Parallel()

	f := Build(orgChart())
	assertCodes(t, []string{"HQ", "LOST"}, rootCodes(f))
	if f.Len() != 6 {
		t.Fatalf("expected 6 nodes, got %d", f.Len())
	}

	eng := mustFind(t, f, "ENG")
	if eng.Parent == nil || eng.Parent.Code != "HQ" {
		t.Fatalf("expected ENG under HQ, got %+v", eng.Parent)
	}
	if len(eng.Children) != 2 || !eng.Expandable() {
		t.Fatalf("expected 2 children, got %d", len(eng.Children))
	}
	if eng.Level() != 1 {
		t.Fatalf("expected level 1, got %d", eng.Level())
	}
}

func TestOrphanBecomesRoot(t *testing.T) {
	t.Parallel()

	f := Build([]options.DomainValue{{Code: "B", ParentCode: "missing"}})
	assertCodes(t, []string{"B"}, rootCodes(f))
	if b := mustFind(t, f, "B"); b.Parent != nil {
		t.Fatalf("expected orphan to have no parent, got %q", b.Parent.Code)
	}
}

func TestCycleMembersBecomeRoots(t *testing.T) {
	t.Parallel()

	f := Build([]options.DomainValue{
		{Code: "A", ParentCode: "B"},
		{Code: "B", ParentCode: "A"},
		{Code: "C", ParentCode: "A"},
		{Code: "S", ParentCode: "S"},
	})
	assertCodes(t, []string{"A", "B", "S"}, rootCodes(f))
	if c := mustFind(t, f, "C"); c.Parent == nil || c.Parent.Code != "A" {
		t.Fatalf("expected C under A, got %+v", c.Parent)
	}
}

func TestDuplicateCodesKeepFirst(t *testing.T) {
	t.Parallel()

	f := Build([]options.DomainValue{{Code: "A", DisplayText: "first"}, {Code: "A", DisplayText: "second"}})
	if f.Len() != 1 {
		t.Fatalf("expected 1 node, got %d", f.Len())
	}
	if a := mustFind(t, f, "A"); a.DisplayText != "first" {
		t.Fatalf("expected first entry to win, got %q", a.DisplayText)
	}
}

func TestFlattenHonoursExpansion(t *testing.T) {
	t.Parallel()

	f := Build(orgChart())
	assertCodes(t, []string{"HQ", "LOST"}, flatCodes(f.Flatten()))

	f.Toggle("HQ")
	rows := f.Flatten()
	assertCodes(t, []string{"HQ", "ENG", "OPS", "LOST"}, flatCodes(rows))
	if rows[1].Level != 1 || !rows[1].Expandable || rows[2].Expandable {
		t.Fatalf("unexpected flat rows %+v %+v", rows[1], rows[2])
	}

	f.ExpandAll()
	assertCodes(t, []string{"HQ", "ENG", "PLAT", "WEB", "OPS", "LOST"}, flatCodes(f.Flatten()))
	f.CollapseAll()
	assertCodes(t, []string{"HQ", "LOST"}, flatCodes(f.Flatten()))
}

func TestSelectExpandsAncestors(t *testing.T) {
	t.Parallel()

	f := Build(orgChart())
	if !f.Select("WEB") {
		t.Fatal("expected WEB to be selectable")
	}
	if f.Selected() != "WEB" {
		t.Fatalf("expected WEB selected, got %q", f.Selected())
	}
	if !slices.Contains(flatCodes(f.Flatten()), "WEB") {
		t.Fatal("expected WEB to be visible after selection")
	}
	if !mustFind(t, f, "HQ").Expanded || !mustFind(t, f, "ENG").Expanded {
		t.Fatal("expected ancestors of WEB to be expanded")
	}

	if f.Select("NOPE") {
		t.Fatal("expected unknown code to be rejected")
	}
	if f.Selected() != "WEB" {
		t.Fatalf("expected selection unchanged, got %q", f.Selected())
	}
}

func TestFilterKeepsAncestorChain(t *testing.T) {
	t.Parallel()

	f := Build(orgChart())
	filtered := f.Filter("plat")

	assertCodes(t, []string{"HQ", "ENG", "PLAT"}, flatCodes(filtered.Flatten()))
	if !mustFind(t, filtered, "HQ").Expanded {
		t.Fatal("expected HQ expanded in filtered forest")
	}
	if _, ok := filtered.Find("OPS"); ok {
		t.Fatal("expected OPS to be filtered out")
	}

	// The source forest is untouched.
	orig := mustFind(t, f, "HQ")
	if orig.Expanded || len(orig.Children) != 2 {
		t.Fatalf("source forest changed: expanded=%v children=%d", orig.Expanded, len(orig.Children))
	}
}

func TestFilterMatchesBranchAndEmptyTerm(t *testing.T) {
	t.Parallel()

	f := Build(orgChart())
	assertCodes(t, []string{"HQ", "ENG"}, flatCodes(f.Filter("ENG").Flatten()))
	if n := f.Filter("").Len(); n != 6 {
		t.Fatalf("expected empty term to keep 6 nodes, got %d", n)
	}
	if roots := f.Filter("zzz").Roots(); len(roots) != 0 {
		t.Fatalf("expected no roots, got %d", len(roots))
	}
}

func TestFromStaticOptions(t *testing.T) {
	t.Parallel()

	f := FromOptions([]schema.Option{{Label: "Low", Value: "L"}, {Label: "High", Value: float64(3)}})
	assertCodes(t, []string{"L", "3"}, rootCodes(f))
	n := mustFind(t, f, "L")
	if n.DisplayText != "Low" || n.Expandable() {
		t.Fatalf("unexpected node %+v", n)
	}
}
