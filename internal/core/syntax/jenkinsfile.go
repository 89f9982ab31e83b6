package syntax

import (
	"fmt"
	"strings"
)

// jenkinsKeywords must all appear in a declarative pipeline.
var jenkinsKeywords = []string{"pipeline", "agent", "stages"}

// CheckJenkinsfile looks for the declarative pipeline keywords. Each missing
// keyword is a warning and makes the result invalid. Whether that fails the
// deployment is decided by the caller's validation policy.
func CheckJenkinsfile(content string) Result {
	res := Result{Valid: true}

	for _, kw := range jenkinsKeywords {
		if strings.Contains(content, kw) {
			res.pass(fmt.Sprintf("Found '%s' keyword", kw))
			continue
		}
		res.warn(fmt.Sprintf("missing '%s' keyword", kw))
		res.Valid = false
	}

	if res.Valid {
		res.pass("Jenkinsfile syntax check passed")
	} else {
		res.fail(fmt.Sprintf("Jenkinsfile syntax check found %d issue(s)", res.Warnings))
	}
	return res
}
