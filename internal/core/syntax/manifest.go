package syntax

import (
	"bufio"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

// k8sObject holds the identifying fields every Kubernetes resource carries.
type k8sObject struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Metadata   struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace,omitempty"`
	} `json:"metadata"`
}

// CheckManifest parses a multi-document YAML manifest and checks that every
// non-empty document is an identifiable Kubernetes object. List kinds carry
// no name of their own and only need apiVersion and kind. When expectKind
// is non-empty at least one document must be of that kind.
func CheckManifest(content, expectKind string) Result {
	res := Result{Valid: true}

	docs := SplitDocuments(content)
	if len(docs) == 0 {
		res.fail("No Kubernetes resources found")
		return res
	}

	kindSeen := false
	for i, doc := range docs {
		n := i + 1

		var obj k8sObject
		if err := yaml.Unmarshal([]byte(doc), &obj); err != nil {
			res.fail(fmt.Sprintf("Document %d is not valid YAML: %v", n, err))
			continue
		}

		var missing []string
		if obj.APIVersion == "" {
			missing = append(missing, "apiVersion")
		}
		if obj.Kind == "" {
			missing = append(missing, "kind")
		}
		list := isListKind(obj.Kind)
		if obj.Metadata.Name == "" && !list {
			missing = append(missing, "metadata.name")
		}
		if len(missing) > 0 {
			res.fail(fmt.Sprintf("Document %d is missing %s", n, strings.Join(missing, ", ")))
			continue
		}

		if expectKind != "" && strings.EqualFold(obj.Kind, expectKind) {
			kindSeen = true
		}
		if list {
			res.pass(fmt.Sprintf("Document %d: %s (%s)", n, obj.Kind, obj.APIVersion))
			continue
		}
		res.pass(fmt.Sprintf("Document %d: %s/%s (%s)", n, obj.Kind, obj.Metadata.Name, obj.APIVersion))
	}

	if expectKind != "" && !kindSeen {
		res.fail(fmt.Sprintf("No %s resource found", expectKind))
	}
	return res
}

// isListKind reports whether kind is a collection such as List or PodList.
func isListKind(kind string) bool {
	return strings.HasSuffix(kind, "List")
}

// SplitDocuments splits YAML text on "---" separator lines and drops
// documents that hold only whitespace or comments.
func SplitDocuments(content string) []string {
	var (
		docs    []string
		current strings.Builder
	)
	flush := func() {
		if !blankDocument(current.String()) {
			docs = append(docs, current.String())
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if isSeparator(line) {
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	flush()
	return docs
}

// isSeparator matches "---" optionally followed by a comment.
func isSeparator(line string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "---")
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	return rest == "" || strings.HasPrefix(rest, "#")
}

func blankDocument(doc string) bool {
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return false
		}
	}
	return true
}
