package workflow

import (
	"context"
	"fmt"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/syntax"
)

// =============================================================================
// Kubernetes and ArgoCD Workflow
// =============================================================================

type manifestKind struct {
	file  string
	kind  string // expected resource kind, "" for any
	label string
}

var manifestKinds = map[domain.Tool]manifestKind{
	domain.ToolKubernetes: {file: "deployment.yaml", label: "Kubernetes manifest"},
	domain.ToolArgoCD:     {file: "application.yaml", kind: "Application", label: "ArgoCD application"},
}

// runManifest writes the manifest, pre-flights it and validates it with a
// client-side dry-run apply.
func (e *Engine) runManifest(ctx context.Context, r *run) report.Report {
	mk := manifestKinds[r.req.Tool]

	dir, err := e.acquire(ctx, r)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to prepare %s workspace: %v", r.req.Tool, err))
	}
	defer dir.Release()

	path, err := dir.Write(mk.file, r.req.Content)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to write %s: %v", mk.file, err))
	}
	r.b.SetFilePath(path)
	r.b.Stdout("%s saved to %s", mk.label, path)

	okMsg := mk.label + " saved and validated successfully"
	failMsg := mk.label + " saved, but validation failed"

	pre := syntax.CheckManifest(r.req.Content, mk.kind)
	r.b.Append(logs.WithStage(pre.Logs, StageValidate)...)
	if !pre.Valid {
		return e.resolve(r, false, okMsg, failMsg)
	}

	command := quote(e.cfg.KubectlBin) + " apply --dry-run=client -f " + quote(path)
	res := e.cli(ctx, r, dir.Path(), command)
	return e.resolve(r, res.Succeeded, okMsg, failMsg)
}

// cli runs a validation command and appends its logs under the validate stage.
func (e *Engine) cli(ctx context.Context, r *run, workingDir, command string) logs.CommandResult {
	echo := logs.Stdout("$ " + command)
	echo.Stage = StageValidate
	r.b.Append(echo)

	res := e.runner.Run(ctx, command, workingDir, e.cfg.CommandTimeout)
	r.b.AppendResult(StageValidate, res)
	r.logger.Info("validation command finished", "exit_code", res.ExitCode)
	return res
}
