package syntax

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// chartMetadata is the subset of Chart.yaml that helm requires.
type chartMetadata struct {
	APIVersion  string `yaml:"apiVersion"`
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
}

// SplitHelmChart splits submitted chart text on the first "---" line into
// Chart.yaml content and optional values.yaml content. Separators before any
// content only open the first document and are skipped.
func SplitHelmChart(content string) (chart, values string, hasValues bool) {
	lines := strings.SplitAfter(content, "\n")
	start := 0
	for i, line := range lines {
		if !isSeparator(line) {
			continue
		}
		if blankDocument(strings.Join(lines[start:i], "")) {
			start = i + 1
			continue
		}
		chart = strings.Join(lines[start:i], "")
		values = strings.Join(lines[i+1:], "")
		return chart, values, strings.TrimSpace(values) != ""
	}
	return strings.Join(lines[start:], ""), "", false
}

// CheckHelmChart parses Chart.yaml and checks the fields helm requires.
func CheckHelmChart(chart string) Result {
	res := Result{Valid: true}

	var meta chartMetadata
	if err := yaml.Unmarshal([]byte(chart), &meta); err != nil {
		res.fail(fmt.Sprintf("Chart.yaml is not valid YAML: %v", err))
		return res
	}

	for _, f := range []struct{ name, value string }{
		{"apiVersion", meta.APIVersion},
		{"name", meta.Name},
		{"version", meta.Version},
	} {
		if f.value == "" {
			res.fail(fmt.Sprintf("Chart.yaml is missing required field '%s'", f.name))
		}
	}
	if !res.Valid {
		return res
	}

	if meta.APIVersion != "v1" && meta.APIVersion != "v2" {
		res.warn(fmt.Sprintf("unexpected chart apiVersion %q (want v1 or v2)", meta.APIVersion))
	}
	res.pass(fmt.Sprintf("Chart %s version %s (apiVersion %s)", meta.Name, meta.Version, meta.APIVersion))
	return res
}
