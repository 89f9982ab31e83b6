// Package deployment provides pure naming functions for deployment runs.
//
// The shell layer uses these to derive container names, image tags and
// staged file names from user input. All functions are pure (no I/O, no
// side effects).
//
// # Functions
//
//   - SanitizeContainerName: Docker-safe container name from free text
//   - ImageTag: Image reference built for a deploy-and-run container
//   - ValidationTag: Unique, time-based tag for throwaway validation builds
//   - TerraformFileName: Staged .tf file name from a caller-supplied name
//
// # Usage
//
//	name := deployment.SanitizeContainerName(req.ContainerName)
//	tag := deployment.ImageTag(name)
package deployment
