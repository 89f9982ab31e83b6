package syntax

import (
	"bufio"
	"fmt"
	"strings"
)

// buildInstructions are the Dockerfile instructions that make an image do something.
var buildInstructions = []string{"WORKDIR", "COPY", "ADD", "RUN", "CMD", "ENTRYPOINT", "EXPOSE"}

// CheckDockerfile scans a Dockerfile line by line. Blank lines and comments
// are ignored and instruction keywords are matched case-insensitively.
//
// A missing FROM instruction makes the result invalid. A Dockerfile with no
// build instruction at all only produces a warning.
func CheckDockerfile(content string) Result {
	res := Result{Valid: true}

	var baseImages []string
	found := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		instruction := strings.ToUpper(fields[0])
		if instruction == "FROM" {
			if len(fields) > 1 {
				baseImages = append(baseImages, fields[1])
			} else {
				baseImages = append(baseImages, "")
			}
			continue
		}
		found[instruction] = true
	}

	if len(baseImages) == 0 {
		res.fail("Missing required FROM instruction")
	} else if baseImages[0] == "" {
		res.fail("FROM instruction has no base image")
	} else {
		res.pass(fmt.Sprintf("FROM instruction found (base image %s)", baseImages[0]))
	}

	var present []string
	for _, kw := range buildInstructions {
		if found[kw] {
			present = append(present, kw)
		}
	}
	if len(present) == 0 {
		res.warn("no build instructions found (" + strings.Join(buildInstructions, ", ") + ")")
	} else {
		res.pass("Build instructions found: " + strings.Join(present, ", "))
	}

	if res.Valid {
		res.pass("Dockerfile syntax check passed")
	} else {
		res.fail("Dockerfile syntax check failed")
	}
	return res
}
