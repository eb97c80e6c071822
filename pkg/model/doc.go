// Package model compiles a resolved form schema into an addressable tree of
// groups, fields and row sets.
//
// Every control with a key is reachable through the PathMap, which maps the
// key to the dotted data path its value lives at. Values are read and written
// by path; nested objects are created on demand. Store wraps a FormModel with
// change notifications so cascades, rule watchers and row views can observe
// edits without polling.
//
// Validation rules are collected from the typed shortcuts on a control
// (required, minLength, pattern, ...) and its `validators` map. Disabled
// fields never report failures.
package model
