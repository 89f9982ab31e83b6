package workflow

import (
	"context"
	"fmt"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/logs"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/report"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/syntax"
)

// runJenkins writes the Jenkinsfile and checks its pipeline structure.
func (e *Engine) runJenkins(ctx context.Context, r *run) report.Report {
	dir, err := e.acquire(ctx, r)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to prepare jenkins workspace: %v", err))
	}
	defer dir.Release()

	path, err := dir.Write("Jenkinsfile", r.req.Content)
	if err != nil {
		return r.b.Fail(fmt.Sprintf("Failed to write Jenkinsfile: %v", err))
	}
	r.b.SetFilePath(path)
	r.b.Stdout("Jenkinsfile saved to %s", path)

	res := syntax.CheckJenkinsfile(r.req.Content)
	r.b.Append(logs.WithStage(res.Logs, StageValidate)...)
	return e.resolve(r, res.Valid,
		"Jenkinsfile saved and validated successfully",
		"Jenkinsfile saved, but validation failed",
	)
}
