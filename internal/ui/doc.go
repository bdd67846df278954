// Package ui implements the session watch terminal interface using bubbletea's Elm architecture.
//
// The watch view renders a live panel of the session: state, subject, token
// expiry countdowns, refresh counts, and the most recent entries from the
// local auth event log. A one-second tick re-reads the session snapshot; a
// spinner marks the authenticating and refreshing states.
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern,
// receiving messages via the Msg union type. Session reads go through the
// narrow [Watcher] interface so tests can drive the model without a live
// session manager.
//
// Keyboard bindings: r forces a refresh, q/ctrl+c quits, j/k scroll the
// event pane. Contextual help is displayed via charmbracelet/bubbles/help.
package ui
