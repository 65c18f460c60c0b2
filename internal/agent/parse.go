// internal/agent/parse.go
package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shihanfu/rl-web-env/internal/env"
)

// A regex to robustly extract a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// ExtractActionJSON pulls the action object out of a model reply, handling
// markdown code fences and surrounding prose, and verifies it names an
// action. The returned string is the raw JSON the environment will execute.
func ExtractActionJSON(response string) (string, error) {
	response = strings.TrimSpace(response)
	var candidate string

	matches := jsonBlockRegex.FindStringSubmatch(response)
	if len(matches) > 1 {
		candidate = strings.TrimSpace(matches[1])
	} else {
		firstBracket := strings.Index(response, "{")
		lastBracket := strings.LastIndex(response, "}")
		if firstBracket != -1 && lastBracket != -1 && lastBracket > firstBracket {
			candidate = response[firstBracket : lastBracket+1]
		} else {
			candidate = response
		}
	}

	if candidate == "" {
		return "", fmt.Errorf("could not find any JSON in the model response")
	}

	var action env.Action
	if err := json.Unmarshal([]byte(candidate), &action); err != nil {
		return "", fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	if action.Action == "" {
		return "", fmt.Errorf("model response missing required 'action' field")
	}
	return candidate, nil
}
