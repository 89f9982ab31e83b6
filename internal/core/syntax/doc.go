// Package syntax provides static pre-flight checks on raw artifact text.
//
// Checks never spawn a process. Each returns a Result carrying a verdict
// and ✓/✗ prefixed diagnostic log entries that the workflow splices into
// the run's log stream.
//
// # Checks
//
//   - CheckDockerfile: FROM is required, build instructions are expected
//   - CheckJenkinsfile: pipeline, agent and stages keywords are expected
//   - CheckManifest: every YAML document has apiVersion, kind and metadata.name
//   - CheckHelmChart: Chart.yaml has apiVersion, name and version
package syntax
