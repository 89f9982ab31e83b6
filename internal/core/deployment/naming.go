package deployment

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
)

// DefaultContainerName is returned when a name sanitizes to nothing.
const DefaultContainerName = domain.DefaultContainerName

// DefaultTerraformFile is the staged file name used when none is given.
const DefaultTerraformFile = "main.tf"

// =============================================================================
// Container and Image Naming
// =============================================================================

// SanitizeContainerName converts free text into a name Docker accepts for both
// containers and image repositories.
//
// The transformation rules are:
//   - Letters are lowercased
//   - Digits are kept
//   - A single '-', '_' or '.' between alphanumerics is kept
//   - Any other run of separators or other characters becomes one '-'
//   - Leading and trailing separators are dropped
//
// Example:
//
//	SanitizeContainerName("My App!")   // returns "my-app"
//	SanitizeContainerName("test-app")  // returns "test-app"
//	SanitizeContainerName("my..app")   // returns "my-app"
//	SanitizeContainerName("***")       // returns "deployed-app"
func SanitizeContainerName(name string) string {
	var (
		b   strings.Builder
		sep []rune
	)
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if b.Len() > 0 {
				switch len(sep) {
				case 0:
				case 1:
					b.WriteRune(sep[0])
				default:
					b.WriteRune('-')
				}
			}
			sep = sep[:0]
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			sep = append(sep, r)
		default:
			// Never kept verbatim, so it always collapses to '-'.
			sep = append(sep, '-', '-')
		}
	}
	if b.Len() == 0 {
		return DefaultContainerName
	}
	return b.String()
}

// ImageTag returns the image reference for a deploy-and-run container.
//
// Example:
//
//	ImageTag("test-app") // returns "test-app:latest"
func ImageTag(containerName string) string {
	return SanitizeContainerName(containerName) + ":latest"
}

// ValidationTag returns a throwaway tag for a validation build. The timestamp
// keeps tags ordered and the suffix keeps concurrent builds apart.
//
// Example:
//
//	ValidationTag(time.Unix(0, 42), "a1b2") // returns "deployer-validate-42-a1b2"
func ValidationTag(now time.Time, suffix string) string {
	tag := fmt.Sprintf("deployer-validate-%d", now.UnixNano())
	if s := SanitizeContainerName(suffix); suffix != "" && s != DefaultContainerName {
		tag += "-" + s
	}
	return tag
}

// =============================================================================
// Staged File Naming
// =============================================================================

// TerraformFileName derives the staged .tf file name from a caller-supplied
// name. Directory components are dropped, any .tf extension is stripped and
// re-added, and unsafe characters become '_'.
//
// Example:
//
//	TerraformFileName("network.tf")     // returns "network.tf"
//	TerraformFileName("../etc/passwd")  // returns "passwd.tf"
//	TerraformFileName("")               // returns "main.tf"
func TerraformFileName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	base = strings.TrimSuffix(base, ".tf")

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	stem := strings.Trim(b.String(), "_")
	if stem == "" {
		return DefaultTerraformFile
	}
	return stem + ".tf"
}
