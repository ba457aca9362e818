// Package prerequisites checks for the local tools tnrctl shells out to.
package prerequisites

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name (or path) to look for.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// TnrInstallURL documents how to install the Thunder Compute CLI.
const TnrInstallURL = "https://www.thundercompute.com/docs/quickstart"

// TnrCLI describes the Thunder Compute CLI used to bootstrap SSH access.
func TnrCLI(name string) Tool {
	if name == "" {
		name = "tnr"
	}
	return Tool{
		Name:        name,
		Required:    true,
		Description: "Required to provision SSH config entries (tnr connect)",
		InstallURL:  TnrInstallURL,
	}
}

// OptionalTools returns tools that are useful but not required.
func OptionalTools() []Tool {
	return []Tool{
		{
			Name:        "ssh",
			Required:    false,
			Description: "Useful for attaching to tmux sessions interactively",
			InstallURL:  "https://www.openssh.com/",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := lookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// Lookup returns the resolved path of a single tool, or an error naming
// the tool and where to install it.
func Lookup(tool Tool) (string, error) {
	results := Check([]Tool{tool})
	if err := results.Error(); err != nil {
		return "", err
	}
	if len(results.Results) == 0 || !results.Results[0].Found {
		return "", fmt.Errorf("%s not found in PATH", tool.Name)
	}
	return results.Results[0].Path, nil
}

// WithVersions fills in Version for every found tool. It is kept separate
// from Check because running the binaries is slow.
func (r *CheckResults) WithVersions(ctx context.Context) *CheckResults {
	for i := range r.Results {
		if r.Results[i].Found {
			r.Results[i].Version = getToolVersion(ctx, r.Results[i].Path)
		}
	}
	return r
}

// getToolVersion attempts to get the version of a tool.
// Returns empty string if version cannot be determined.
func getToolVersion(ctx context.Context, path string) string {
	versionFlags := []string{"--version", "version", "-V"}

	for _, flag := range versionFlags {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		// #nosec G204 - path comes from exec.LookPath on a trusted tool name
		output, err := exec.CommandContext(cctx, path, flag).CombinedOutput()
		cancel()
		if err == nil {
			lines := strings.Split(string(output), "\n")
			if len(lines) > 0 {
				return strings.TrimSpace(lines[0])
			}
		}
	}

	return ""
}
