package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Tool Tests
// =============================================================================

func TestParseTool(t *testing.T) {
	tests := []struct {
		in   string
		want Tool
	}{
		{"docker", ToolDocker},
		{"Docker", ToolDocker},
		{"terraform", ToolTerraform},
		{"k8s", ToolKubernetes},
		{"kubernetes", ToolKubernetes},
		{"helm", ToolHelm},
		{"ArgoCD", ToolArgoCD},
		{" jenkins ", ToolJenkins},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTool(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTool_Unknown(t *testing.T) {
	_, err := ParseTool("ansible")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestTool_Supports(t *testing.T) {
	assert.True(t, ToolDocker.Supports(ActionDeployAndRun))
	assert.True(t, ToolDocker.Supports(ActionValidate))
	assert.False(t, ToolDocker.Supports(ActionApply))
	assert.True(t, ToolTerraform.Supports(ActionPlan))
	assert.True(t, ToolTerraform.Supports(ActionApply))
	assert.False(t, ToolTerraform.Supports(ActionDeployAndRun))
	assert.True(t, ToolHelm.Supports(ActionDeploy))
	assert.False(t, ToolJenkins.Supports(ActionPlan))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyAdvisory, p)

	p, err = ParsePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	_, err = ParsePolicy("lenient")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

// =============================================================================
// Request Validation Tests
// =============================================================================

func TestRequestValidate_DefaultsModeToDeploy(t *testing.T) {
	got, err := Request{Tool: "jenkins", Content: "pipeline {}"}.Validate()
	require.NoError(t, err)
	assert.Equal(t, ActionDeploy, got.Mode)
	assert.Equal(t, ToolJenkins, got.Tool)
}

func TestRequestValidate_DeployAndRunDefaults(t *testing.T) {
	got, err := Request{Tool: ToolDocker, Content: "FROM alpine", Mode: ActionDeployAndRun, Port: 3010}.Validate()
	require.NoError(t, err)
	assert.Equal(t, DefaultContainerName, got.ContainerName)
}

func TestRequestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"missing tool", Request{Content: "x"}, "toolKind"},
		{"unknown tool", Request{Tool: "puppet", Content: "x"}, "toolKind"},
		{"empty content", Request{Tool: ToolDocker, Content: "   "}, "content"},
		{"unsupported mode", Request{Tool: ToolHelm, Content: "x", Mode: ActionApply}, "mode"},
		{"missing port", Request{Tool: ToolDocker, Content: "x", Mode: ActionDeployAndRun}, "port"},
		{"port too large", Request{Tool: ToolDocker, Content: "x", Mode: ActionDeployAndRun, Port: 70000}, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.req.Validate()
			require.Error(t, err)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}
