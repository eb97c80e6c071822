package main

import (
	"encoding/json"
	"io"

	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/orchestrator"
)

type controlState struct {
	Visible  bool `json:"visible"`
	Disabled bool `json:"disabled"`
	Required bool `json:"required"`
}

// formReport is the JSON summary printed by `compile` and returned by the
// compile endpoint.
type formReport struct {
	ID      string                           `json:"id"`
	Code    string                           `json:"code,omitempty"`
	Label   string                           `json:"label,omitempty"`
	Paths   model.PathMap                    `json:"paths"`
	Values  map[string]any                   `json:"values"`
	States  map[string]controlState          `json:"states"`
	Options map[string][]options.DomainValue `json:"options,omitempty"`
	Invalid map[string][]string              `json:"invalid,omitempty"`
}

func newReport(inst *orchestrator.Instance) formReport {
	r := formReport{
		ID:      inst.ID.String(),
		Code:    inst.Schema.Code,
		Label:   inst.Schema.Label,
		Paths:   inst.Model.PathMap(),
		Values:  inst.Values(),
		States:  make(map[string]controlState),
		Options: make(map[string][]options.DomainValue, len(inst.Cascades)),
		Invalid: inst.Validate(),
	}
	for key, st := range inst.Watcher.States() {
		r.States[key] = controlState{Visible: st.Visible, Disabled: st.Disabled, Required: st.Required}
	}
	for key, c := range inst.Cascades {
		r.Options[key] = c.Options()
	}
	return r
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
