// internal/env/types.go

// Package env implements the interactive web environment: it owns the
// browser tabs, executes agent actions addressed by semantic identifier, and
// produces the per-step observation the agent consumes.
package env

import "github.com/shihanfu/rl-web-env/internal/dom"

// Action names accepted by Step.
const (
	ActionClick     = "click"
	ActionType      = "type"
	ActionHover     = "hover"
	ActionSelect    = "select"
	ActionClear     = "clear"
	ActionKeyPress  = "key_press"
	ActionGotoURL   = "goto_url"
	ActionBack      = "back"
	ActionForward   = "forward"
	ActionRefresh   = "refresh"
	ActionNewTab    = "new_tab"
	ActionSwitchTab = "switch_tab"
	ActionCloseTab  = "close_tab"
	ActionTerminate = "terminate"
)

// Action is one agent-issued request. Which fields are required depends on
// the action name; TabID is a pointer so an absent id can be told apart from
// tab 0.
type Action struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
	Text   string `json:"text,omitempty"`
	Enter  bool   `json:"enter,omitempty"`
	Value  string `json:"value,omitempty"`
	Key    string `json:"key,omitempty"`
	URL    string `json:"url,omitempty"`
	TabID  *int   `json:"tab_id,omitempty"`
	Answer string `json:"answer,omitempty"`
}

// TabInfo describes one open tab in an observation.
type TabInfo struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	IsActive bool   `json:"is_active"`
}

// Observation is the full environment state returned after setup, reset, and
// every step. Error carries the failure of the preceding action, if any; the
// observation itself is always well formed.
type Observation struct {
	dom.Observation

	Tabs        []TabInfo `json:"tabs"`
	ModelAnswer *string   `json:"model_answer"`
	Terminated  bool      `json:"terminated"`
	Error       *string   `json:"error"`
}
