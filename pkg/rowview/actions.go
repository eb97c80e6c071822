package rowview

import (
	"fmt"

	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/visibility"
)

// DeleteAction is the action id handled by Trigger itself.
const DeleteAction = "delete"

// Actions splits the visible actions of a row into the ones rendered inline
// and the ones collapsed into an overflow menu.
type Actions struct {
	Inline   []schema.ActionDefinition
	Overflow []schema.ActionDefinition
}

// ActionEvent is what a triggered action reports to the host.
type ActionEvent struct {
	ActionID string
	FormKey  string
	RowIndex int
	Row      map[string]any
}

// RowActions returns the actions whose visibleWhen holds for row.
func (v *View) RowActions(row Row, actions []schema.ActionDefinition) Actions {
	visible := make([]schema.ActionDefinition, 0, len(actions))
	ctx := visibility.RowContext(row.Values)
	for _, action := range actions {
		if visibility.Check(v.evaluator, v.logger, v.rows.Path(), action.VisibleWhen, ctx) {
			visible = append(visible, action)
		}
	}
	if len(visible) <= v.cfg.MaxInlineActions {
		return Actions{Inline: visible}
	}
	return Actions{
		Inline:   visible[:v.cfg.MaxInlineActions],
		Overflow: visible[v.cfg.MaxInlineActions:],
	}
}

// Trigger reports a row action. The delete action also removes the row.
func (v *View) Trigger(actionID string, index int) (ActionEvent, error) {
	rows, _ := v.snapshot()
	if index < 0 || index >= len(rows) {
		return ActionEvent{}, fmt.Errorf("rowview: row %d out of range", index)
	}
	ev := ActionEvent{
		ActionID: actionID,
		FormKey:  v.rows.Key(),
		RowIndex: index,
		Row:      rows[index].Values,
	}
	if actionID == DeleteAction {
		if err := v.RemoveRow(index); err != nil {
			return ActionEvent{}, err
		}
	}
	return ev, nil
}
