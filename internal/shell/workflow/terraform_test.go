package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tfFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tf") {
			names = append(names, e.Name())
		}
	}
	return names
}

func tfRequest(mode domain.Action, content string) domain.Request {
	return domain.Request{Tool: domain.ToolTerraform, Content: content, Mode: mode}
}

const tfConfig = `resource "null_resource" "example" {}`

// =============================================================================
// Sweep
// =============================================================================

func TestTerraform_OnlyWrittenFileExistsBeforeInit(t *testing.T) {
	var root string
	var seen [][]string
	runner := &fakeRunner{}
	runner.fn = func(command, dir string) logs.CommandResult {
		if strings.Contains(command, " init ") {
			seen = append(seen, tfFiles(t, dir))
		}
		return ok("ok")
	}
	e := newTestEngine(t, runner, func(c *Config) { root = c.StagingRoot })

	tfDir := filepath.Join(root, "terraform")
	require.NoError(t, os.MkdirAll(tfDir, 0755))
	for _, stale := range []string{"old.tf", "network.tf"} {
		require.NoError(t, os.WriteFile(filepath.Join(tfDir, stale), []byte("stale"), 0644))
	}

	rep := e.Execute(context.Background(), tfRequest(domain.ActionPlan, tfConfig))

	require.True(t, rep.Success, rep.Message)
	assert.Equal(t, [][]string{{"main.tf"}}, seen)
	assert.True(t, containsMessage(rep.Logs, "Removed previous configuration: network.tf, old.tf"))
}

// =============================================================================
// Deploy
// =============================================================================

func TestTerraform_DeployUsesFilename(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestEngine(t, runner, nil)
	req := tfRequest(domain.ActionDeploy, tfConfig)
	req.Filename = "network"

	rep := e.Execute(context.Background(), req)

	require.True(t, rep.Success, rep.Message)
	assert.Equal(t, "network.tf", filepath.Base(rep.FilePath))
	assert.Equal(t, "Terraform configuration saved and validated successfully", rep.Message)
	assert.Equal(t, []string{
		"terraform init -input=false -no-color",
		"terraform validate -no-color",
	}, runner.commands())
}

func TestTerraform_DeployInitFailureStillSucceeds(t *testing.T) {
	runner := &fakeRunner{fn: failOn(" init ")}
	e := newTestEngine(t, runner, nil)

	rep := e.Execute(context.Background(), tfRequest(domain.ActionDeploy, tfConfig))

	assert.True(t, rep.Success)
	assert.Contains(t, rep.Message, "terraform init failed; configuration not validated")
	assert.Len(t, runner.commands(), 1, "validate must not run after a failed init")
	assert.NotEmpty(t, rep.Warnings)
}

func TestTerraform_DeployValidateFailure(t *testing.T) {
	runner := &fakeRunner{fn: failOn(" validate ")}
	e := newTestEngine(t, runner, nil)

	rep := e.Execute(context.Background(), tfRequest(domain.ActionDeploy, tfConfig))

	assert.False(t, rep.Success)
	assert.Equal(t, "terraform validate failed", rep.Message)
}

// =============================================================================
// Plan and Apply
// =============================================================================

func TestTerraform_PlanThenApply(t *testing.T) {
	var root string
	runner := &fakeRunner{}
	e := newTestEngine(t, runner, func(c *Config) { root = c.StagingRoot })

	plan := e.Execute(context.Background(), tfRequest(domain.ActionPlan, tfConfig))
	apply := e.Execute(context.Background(), tfRequest(domain.ActionApply, tfConfig+"\n# v2"))

	require.True(t, plan.Success, plan.Message)
	require.True(t, apply.Success, apply.Message)

	assert.Less(t, indexOf(plan.Logs, "init -input=false"), indexOf(plan.Logs, "plan -input=false"))
	assert.Less(t, indexOf(apply.Logs, "init -input=false"), indexOf(apply.Logs, "apply -auto-approve"))

	tfDir := filepath.Join(root, "terraform")
	assert.Equal(t, []string{"main.tf"}, tfFiles(t, tfDir))
	data, err := os.ReadFile(filepath.Join(tfDir, "main.tf"))
	require.NoError(t, err)
	assert.Equal(t, tfConfig+"\n# v2", string(data))
}

func TestTerraform_InitFailureIsFatalForPlanAndApply(t *testing.T) {
	for _, mode := range []domain.Action{domain.ActionPlan, domain.ActionApply} {
		t.Run(string(mode), func(t *testing.T) {
			runner := &fakeRunner{fn: failOn(" init ")}
			e := newTestEngine(t, runner, nil)

			rep := e.Execute(context.Background(), tfRequest(mode, tfConfig))

			assert.False(t, rep.Success)
			assert.Equal(t, "terraform init failed", rep.Message)
			assert.Len(t, runner.commands(), 1)
			assert.True(t, containsMessage(rep.Logs, "error running  init "))
		})
	}
}

func TestTerraform_ApplyLogsAreLabeled(t *testing.T) {
	e := newTestEngine(t, &fakeRunner{}, nil)

	rep := e.Execute(context.Background(), tfRequest(domain.ActionApply, tfConfig))
	require.True(t, rep.Success, rep.Message)

	warning := indexOf(rep.Logs, "modifies real infrastructure")
	require.GreaterOrEqual(t, warning, 0)
	assert.Equal(t, logs.StreamStderr, rep.Logs[warning].Stream)

	stages := map[string]bool{}
	for i, entry := range rep.Logs {
		if i > warning {
			assert.Equal(t, StageApply, entry.Stage, entry.Message)
		}
		stages[entry.Stage] = true
	}
	assert.True(t, stages[StageInit])
	assert.True(t, stages[StageApply])
	assert.False(t, stages[StagePlan])
}

func TestTerraform_ApplyFailure(t *testing.T) {
	e := newTestEngine(t, &fakeRunner{fn: failOn(" apply ")}, nil)

	rep := e.Execute(context.Background(), tfRequest(domain.ActionApply, tfConfig))

	assert.False(t, rep.Success)
	assert.Equal(t, "terraform apply failed", rep.Message)
}

// =============================================================================
// Concurrency
// =============================================================================

func TestTerraform_ConcurrentAppliesAreSerialized(t *testing.T) {
	var root string
	var active, maxActive int32
	var mu sync.Mutex
	applied := map[string]bool{}

	runner := &fakeRunner{}
	runner.fn = func(command, dir string) logs.CommandResult {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			cur := atomic.LoadInt32(&maxActive)
			if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
				break
			}
		}
		if strings.Contains(command, " apply ") {
			data, err := os.ReadFile(filepath.Join(dir, "main.tf"))
			if err == nil {
				mu.Lock()
				applied[string(data)] = true
				mu.Unlock()
			}
		}
		time.Sleep(10 * time.Millisecond)
		return ok("ok")
	}
	e := newTestEngine(t, runner, func(c *Config) { root = c.StagingRoot })

	inputs := []string{tfConfig + "\n# A", tfConfig + "\n# B"}
	var wg sync.WaitGroup
	for _, content := range inputs {
		wg.Add(1)
		go func(content string) {
			defer wg.Done()
			rep := e.Execute(context.Background(), tfRequest(domain.ActionApply, content))
			assert.True(t, rep.Success, rep.Message)
		}(content)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive, "terraform commands must never overlap")
	assert.Equal(t, map[string]bool{inputs[0]: true, inputs[1]: true}, applied, "each apply sees its own configuration")

	tfDir := filepath.Join(root, "terraform")
	assert.Equal(t, []string{"main.tf"}, tfFiles(t, tfDir))
	data, err := os.ReadFile(filepath.Join(tfDir, "main.tf"))
	require.NoError(t, err)
	assert.Contains(t, inputs, string(data))
}
