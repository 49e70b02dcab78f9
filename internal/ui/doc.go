// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks one statement through an import:
//  1. [MappingView] : One column list per field, with the guessed header preselected
//  2. [ConfirmView] : Candidate count and a sample, recomputed from the current mapping
//  3. [ImportView] : Phase and batch counter while the import runs
//  4. [ResultView] : Done, or failed with the recorded message
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the ImportEngine, providing non-blocking status reporting during imports.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
