package workflow

import (
	"context"
	"fmt"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/syntax"
)

// =============================================================================
// Helm Workflow
// =============================================================================

const chartSubdir = "chart"

// runHelm splits the content into Chart.yaml and values.yaml, writes the
// chart and lints it.
func (e *Engine) runHelm(ctx context.Context, r *run) report.Report {
	dir, err := e.acquire(ctx, r)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to prepare helm workspace: %v", err))
	}
	defer dir.Release()

	chart, values, hasValues := syntax.SplitHelmChart(r.req.Content)

	chartDir, err := dir.Sub(chartSubdir)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to create chart directory: %v", err))
	}
	if _, err := dir.Write(chartSubdir+"/Chart.yaml", chart); err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to write Chart.yaml: %v", err))
	}
	if hasValues {
		if _, err := dir.Write(chartSubdir+"/values.yaml", values); err != nil {
			return r.b.Fail(fmt.Sprintf("Failed to write values.yaml: %v", err))
		}
	} else if err := dir.Remove(chartSubdir + "/values.yaml"); err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to remove stale values.yaml: %v", err))
	}
	if _, err := dir.Sub(chartSubdir + "/templates"); err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to create templates directory: %v", err))
	}
	r.b.SetFilePath(chartDir)
	if hasValues {
		r.b.Stdout("Helm chart saved to %s (Chart.yaml, values.yaml)", chartDir)
	} else {
		r.b.Stdout("Helm chart saved to %s (Chart.yaml)", chartDir)
	}

	okMsg := "Helm chart saved and validated successfully"
	failMsg := "Helm chart saved, but validation failed"

	pre := syntax.CheckHelmChart(chart)
	r.b.Append(logs.WithStage(pre.Logs, StageValidate)...)
	if !pre.Valid {
		return e.resolve(r, false, okMsg, failMsg)
	}

	res := e.cli(ctx, r, dir.Path(), quote(e.cfg.HelmBin)+" lint "+quote(chartDir))
	return e.resolve(r, res.Succeeded, okMsg, failMsg)
}
