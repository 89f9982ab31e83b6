package domain

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrUnknownTool       = errors.New("unknown tool")
	ErrUnsupportedAction = errors.New("action not supported for tool")
	ErrInvalidRequest    = errors.New("invalid deployment request")
	ErrUnknownPolicy     = errors.New("unknown validation policy")
)

// =============================================================================
// Tool
// =============================================================================

// Tool identifies the kind of artifact a request carries.
type Tool string

const (
	ToolDocker     Tool = "docker"
	ToolTerraform  Tool = "terraform"
	ToolKubernetes Tool = "kubernetes"
	ToolHelm       Tool = "helm"
	ToolArgoCD     Tool = "argocd"
	ToolJenkins    Tool = "jenkins"
)

// Tools lists every supported tool.
var Tools = []Tool{ToolDocker, ToolTerraform, ToolKubernetes, ToolHelm, ToolArgoCD, ToolJenkins}

// ParseTool resolves a tool name case-insensitively. "k8s" is accepted for kubernetes.
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "docker", "dockerfile":
		return ToolDocker, nil
	case "terraform", "tf":
		return ToolTerraform, nil
	case "kubernetes", "k8s":
		return ToolKubernetes, nil
	case "helm":
		return ToolHelm, nil
	case "argocd", "argo":
		return ToolArgoCD, nil
	case "jenkins", "jenkinsfile":
		return ToolJenkins, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// =============================================================================
// Action
// =============================================================================

// Action is the workflow variant requested for a tool.
type Action string

const (
	ActionDeploy       Action = "deploy"
	ActionDeployAndRun Action = "deploy-and-run"
	ActionValidate     Action = "validate"
	ActionPlan         Action = "plan"
	ActionApply        Action = "apply"
)

// Supports reports whether the tool has a workflow for the action.
func (t Tool) Supports(a Action) bool {
	switch t {
	case ToolDocker:
		return a == ActionDeploy || a == ActionDeployAndRun || a == ActionValidate
	case ToolTerraform:
		return a == ActionDeploy || a == ActionPlan || a == ActionApply
	case ToolKubernetes, ToolHelm, ToolArgoCD, ToolJenkins:
		return a == ActionDeploy
	}
	return false
}

// Destructive reports whether the action mutates external infrastructure.
func (a Action) Destructive() bool {
	return a == ActionApply
}

// =============================================================================
// Validation Policy
// =============================================================================

// ValidationPolicy decides whether a failed validation fails the deployment.
type ValidationPolicy string

const (
	// PolicyAdvisory keeps success=true and downgrades the message.
	PolicyAdvisory ValidationPolicy = "advisory"
	// PolicyStrict reports the validation outcome as the deployment outcome.
	PolicyStrict ValidationPolicy = "strict"
)

// ParsePolicy resolves a policy name. Empty means advisory.
func ParsePolicy(s string) (ValidationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "advisory", "best-effort":
		return PolicyAdvisory, nil
	case "strict":
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// =============================================================================
// Run State
// =============================================================================

// RunState is the tri-state verdict of a workflow run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)
