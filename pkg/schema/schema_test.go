package schema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMixedReferencesAndInlineControls(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"code": "EMP",
		"version": "1",
		"label": "Employee",
		"sections": [
			{"type": "GROUP", "label": "Personal", "controls": ["employee.firstName", {"key": "age", "type": "number", "min": 0}]}
		]
	}`)

	form, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if form.Code != "EMP" || len(form.Sections) != 1 {
		t.Fatalf("unexpected schema header: %+v", form)
	}
	section := form.Sections[0].Control
	if section == nil {
		t.Fatalf("expected inline section")
	}
	if section.NormalizedType() != TypeGroup {
		t.Fatalf("expected group type, got %q", section.NormalizedType())
	}
	if !section.Controls[0].IsRef() || section.Controls[0].Ref != "employee.firstName" {
		t.Fatalf("expected first child to be a reference, got %+v", section.Controls[0])
	}
	age := section.Controls[1].Control
	if age == nil || age.Min == nil || *age.Min != 0 {
		t.Fatalf("expected explicit min 0 to survive decoding, got %+v", age)
	}
}

func TestControlConfigRoundTripKeepsDeclaredForm(t *testing.T) {
	t.Parallel()

	entries := []ControlConfig{Ref("employee.email"), Inline(ControlDefinition{Key: "note", Type: TypeText})}
	raw, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if diff := cmp.Diff(`["employee.email",{"key":"note","type":"text"}]`, string(raw)); diff != "" {
		t.Fatalf("unexpected encoding (-want +got):\n%s", diff)
	}
}

func TestInlineEntriesRecordDeclaredFields(t *testing.T) {
	t.Parallel()

	form, err := Parse([]byte(`{"sections": [{"key": "state", "disabledWhen": "", "label": ""}, "employee.email"]}`))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	entry := form.Sections[0]
	if diff := cmp.Diff([]string{"disabledWhen", "key", "label"}, entry.Declared); diff != "" {
		t.Fatalf("declared fields mismatch (-want +got):\n%s", diff)
	}
	if !entry.IsDeclared("disabledWhen") || entry.IsDeclared("visibleWhen") {
		t.Fatalf("unexpected IsDeclared results for %v", entry.Declared)
	}
	if form.Sections[1].Declared != nil {
		t.Fatalf("expected references to carry no declared fields")
	}
}

func TestParseYAMLDocument(t *testing.T) {
	t.Parallel()

	raw := []byte(`
code: ADDR
sections:
  - key: address
    type: group
    controls:
      - address.country
      - key: zip
        required: true
`)
	form, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	address := form.Sections[0].Control
	if address.Key != "address" || len(address.Controls) != 2 {
		t.Fatalf("unexpected section: %+v", address)
	}
	zip := address.Controls[1].Control
	if zip == nil || !BoolValue(zip.Required) {
		t.Fatalf("expected zip to be required, got %+v", zip)
	}
}

func TestWidthNotations(t *testing.T) {
	t.Parallel()

	cases := map[string]Responsive{
		`6`:           {Mobile: 6, Tablet: 6, Desktop: 6},
		`[12, 6]`:     {Mobile: 12, Tablet: 12, Desktop: 6},
		`[12, 6, 4]`:  {Mobile: 12, Tablet: 6, Desktop: 4},
		`"[12, 4]"`:   {Mobile: 12, Tablet: 12, Desktop: 4},
		`"not-json"`:  {Mobile: 12, Tablet: 12, Desktop: 12},
		`[]`:          {Mobile: 12, Tablet: 12, Desktop: 12},
		`"[3, 3, 3]"`: {Mobile: 3, Tablet: 3, Desktop: 3},
	}
	for input, want := range cases {
		var w Width
		if err := json.Unmarshal([]byte(input), &w); err != nil {
			t.Fatalf("unmarshal %s: %v", input, err)
		}
		if diff := cmp.Diff(want, w.Responsive()); diff != "" {
			t.Fatalf("width %s mismatch (-want +got):\n%s", input, diff)
		}
	}

	if got := (Width{12, 6, 4}).Classes(); got != "col-xs-12 col-md-6 col-lg-4" {
		t.Fatalf("unexpected classes %q", got)
	}
}

func TestControlTypeKinds(t *testing.T) {
	t.Parallel()

	if ControlType("TABLE").Kind() != KindRowSet {
		t.Fatalf("expected TABLE to compile into a rowset")
	}
	if ControlType("Group").Kind() != KindGroup {
		t.Fatalf("expected Group to compile into a group")
	}
	if ControlType("").Normalize() != TypeText {
		t.Fatalf("expected empty type to default to text")
	}
	if ControlType("slider").Known() {
		t.Fatalf("expected slider to be unknown")
	}
}
