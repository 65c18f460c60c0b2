// internal/env/task.go
package env

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Task describes what the agent is asked to accomplish and where to start.
type Task struct {
	StartURL string   `json:"start_url"`
	Sites    []string `json:"sites,omitempty"`
	Intent   string   `json:"intent"`
}

// LoadTask reads a task definition from a JSON file.
func LoadTask(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file %s: %w", path, err)
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
	}
	if task.StartURL == "" {
		return nil, fmt.Errorf("task file %s is missing start_url", path)
	}
	return &task, nil
}
