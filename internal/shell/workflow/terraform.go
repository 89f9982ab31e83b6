package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/deployment"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/staging"
)

// =============================================================================
// Terraform Workflow
// =============================================================================

// Stage labels of terraform log entries.
const (
	StageInit     = "init"
	StageValidate = "validate"
	StagePlan     = "plan"
	StageApply    = "apply"
)

// runTerraform replaces the configuration in the terraform directory with
// the request content and runs init followed by the action's command.
func (e *Engine) runTerraform(ctx context.Context, r *run) report.Report {
	dir, err := e.acquire(ctx, r)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to prepare terraform workspace: %v", err))
	}
	defer dir.Release()

	// 1. Sweep every previous configuration file
	removed, err := dir.Sweep(".tf")
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to clear previous configuration: %v", err))
	}
	if len(removed) > 0 {
		r.b.Stdout("Removed previous configuration: %s", strings.Join(removed, ", "))
	}

	// 2. Write
	name := deployment.DefaultTerraformFile
	if r.req.Mode == domain.ActionDeploy {
		name = deployment.TerraformFileName(r.req.Filename)
	}
	path, err := dir.Write(name, r.req.Content)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to write %s: %v", name, err))
	}
	r.b.SetFilePath(path)
	r.b.Stdout("Terraform configuration saved to %s", path)

	// 3. Init
	initRes := e.terraform(ctx, r, dir, StageInit, "init -input=false -no-color")

	// 4. Action
	switch r.req.Mode {
	case domain.ActionPlan:
		if !initRes.Succeeded {
			return r.b.Fail("terraform init failed")
		}
		res := e.terraform(ctx, r, dir, StagePlan, "plan -input=false -no-color")
		return r.b.Resolve(res.Succeeded, pick(res.Succeeded, "Terraform plan completed successfully", "terraform plan failed"))

	case domain.ActionApply:
		if !initRes.Succeeded {
			return r.b.Fail("terraform init failed")
		}
		warning := logs.Stderr("⚠ terraform apply -auto-approve modifies real infrastructure")
		warning.Stage = StageApply
		r.b.Append(warning)
		r.logger.Warn("applying terraform configuration", "path", path)
		res := e.terraform(ctx, r, dir, StageApply, "apply -auto-approve -input=false -no-color")
		return r.b.Resolve(res.Succeeded, pick(res.Succeeded, "Terraform apply completed successfully", "terraform apply failed"))
	}

	if !initRes.Succeeded {
		r.b.Warn("terraform init failed; configuration not validated")
		return r.b.Succeed("Terraform configuration saved, but terraform init failed; configuration not validated")
	}
	res := e.terraform(ctx, r, dir, StageValidate, "validate -no-color")
	return r.b.Resolve(res.Succeeded, pick(res.Succeeded, "Terraform configuration saved and validated successfully", "terraform validate failed"))
}

// terraform runs one terraform subcommand in the staging directory and
// appends its logs under stage.
func (e *Engine) terraform(ctx context.Context, r *run, dir *staging.Dir, stage, args string) logs.CommandResult {
	command := quote(e.cfg.TerraformBin) + " " + args
	echo := logs.Stdout("$ " + command)
	echo.Stage = stage
	r.b.Append(echo)

	res := e.runner.Run(ctx, command, dir.Path(), e.cfg.CommandTimeout)
	r.b.AppendResult(stage, res)
	r.logger.Info("terraform stage finished",
		"stage", stage,
		"exit_code", res.ExitCode,
	)
	return res
}

func pick(ok bool, okMsg, failMsg string) string {
	if ok {
		return okMsg
	}
	return failMsg
}

// quote single-quotes s for sh.
func quote(s string) string {
	if s != "" && strings.IndexFunc(s, func(c rune) bool {
		return !(c == '/' || c == '.' || c == '-' || c == '_' || c == ':' ||
			('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
