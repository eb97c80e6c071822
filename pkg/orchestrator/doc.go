// Package orchestrator wires the load → resolve → transform → model → bind
// pipeline behind a single entry point. Compile returns an Instance that owns
// the value store, the rule watcher, and one option cascade per select or
// tree control.
package orchestrator
