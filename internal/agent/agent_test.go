// internal/agent/agent_test.go
package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/shihanfu/rl-web-env/internal/config"
	"github.com/shihanfu/rl-web-env/internal/env"
	"github.com/shihanfu/rl-web-env/internal/llmclient"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient replays a scripted sequence of model replies.
type fakeClient struct {
	replies []string
	err     error
	calls   int
}

func (f *fakeClient) GenerateResponse(_ context.Context, _ llmclient.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.replies) {
		return "", fmt.Errorf("no scripted reply for call %d", f.calls)
	}
	reply := f.replies[f.calls]
	f.calls++
	return reply, nil
}

// fakeEnv records executed actions and terminates when it sees a terminate
// action, mirroring the real environment's contract.
type fakeEnv struct {
	task     *env.Task
	steps    []string
	answer   *string
	stepErrs map[int]string
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{task: &env.Task{StartURL: "http://example.com", Intent: "buy shoes"}}
}

func (f *fakeEnv) Step(_ context.Context, raw string) *env.Observation {
	f.steps = append(f.steps, raw)
	obs := &env.Observation{}
	if msg, ok := f.stepErrs[len(f.steps)]; ok {
		obs.Error = &msg
	}
	var act env.Action
	if err := json.Unmarshal([]byte(raw), &act); err == nil && act.Action == env.ActionTerminate {
		f.answer = &act.Answer
		obs.ModelAnswer = f.answer
		obs.Terminated = true
	}
	return obs
}

func (f *fakeEnv) Terminated() (string, bool) {
	if f.answer == nil {
		return "", false
	}
	return *f.answer, true
}

func (f *fakeEnv) Task() *env.Task { return f.task }

func testAgentConfig() config.AgentConfig {
	cfg := config.NewDefaultConfig().Agent
	cfg.MaxSteps = 5
	return cfg
}

func TestExtractActionJSON(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"raw json", `{"action":"click","target":"submit"}`, `{"action":"click","target":"submit"}`, false},
		{"fenced json block", "```json\n{\"action\":\"back\"}\n```", `{"action":"back"}`, false},
		{"bare fence", "```\n{\"action\":\"refresh\"}\n```", `{"action":"refresh"}`, false},
		{"surrounding prose", `I will click the button now. {"action":"click","target":"add_to_cart"} Done.`, `{"action":"click","target":"add_to_cart"}`, false},
		{"missing action field", `{"target":"submit"}`, "", true},
		{"no json at all", `I cannot help with that.`, "", true},
		{"malformed json", `{"action":"click"`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractActionJSON(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRunTerminates(t *testing.T) {
	environment := newFakeEnv()
	client := &fakeClient{replies: []string{
		`{"action":"click","target":"add_to_cart"}`,
		`{"action":"terminate","answer":"$19.99"}`,
	}}
	a := New(testAgentConfig(), client, environment, zap.NewNop())

	answer, err := a.Run(context.Background(), &env.Observation{})
	require.NoError(t, err)
	assert.Equal(t, "$19.99", answer)
	require.Len(t, environment.steps, 2)
	assert.Contains(t, environment.steps[0], "add_to_cart")
}

func TestRunStopsAtStepLimit(t *testing.T) {
	environment := newFakeEnv()
	client := &fakeClient{replies: []string{
		`{"action":"refresh"}`, `{"action":"refresh"}`, `{"action":"refresh"}`,
		`{"action":"refresh"}`, `{"action":"refresh"}`, `{"action":"refresh"}`,
	}}
	a := New(testAgentConfig(), client, environment, zap.NewNop())

	_, err := a.Run(context.Background(), &env.Observation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step limit")
	assert.Len(t, environment.steps, 5)
}

func TestRunContinuesPastStepErrors(t *testing.T) {
	environment := newFakeEnv()
	environment.stepErrs = map[int]string{1: "Error executing action: no element matches identifier"}
	client := &fakeClient{replies: []string{
		`{"action":"click","target":"ghost"}`,
		`{"action":"terminate","answer":""}`,
	}}
	a := New(testAgentConfig(), client, environment, zap.NewNop())

	answer, err := a.Run(context.Background(), &env.Observation{})
	require.NoError(t, err)
	assert.Empty(t, answer)
	assert.Len(t, environment.steps, 2)
}

func TestRunPropagatesGenerationFailure(t *testing.T) {
	environment := newFakeEnv()
	client := &fakeClient{err: fmt.Errorf("api unreachable")}
	a := New(testAgentConfig(), client, environment, zap.NewNop())

	_, err := a.Run(context.Background(), &env.Observation{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api unreachable")
}

func TestBuildUserPromptIncludesState(t *testing.T) {
	task := &env.Task{Intent: "find the price"}
	errMsg := "Error executing action: no active tab"
	obs := &env.Observation{Error: &errMsg}
	history := []stepRecord{{Step: 1, Action: `{"action":"refresh"}`}}

	prompt, err := buildUserPrompt(task, obs, history)
	require.NoError(t, err)
	assert.Contains(t, prompt, "find the price")
	assert.Contains(t, prompt, "no active tab")
	assert.Contains(t, prompt, `{\"action\":\"refresh\"}`)
}
