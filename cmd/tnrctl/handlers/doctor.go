package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/imamik/tnrctl/internal/config"
	"github.com/imamik/tnrctl/internal/keys"
	"github.com/imamik/tnrctl/internal/util/prerequisites"
)

// DoctorReport is the result of the doctor command.
type DoctorReport struct {
	Config     CheckItem   `json:"config"`
	APIKey     CheckItem   `json:"apiKey"`
	SecretsDir CheckItem   `json:"secretsDir"`
	API        CheckItem   `json:"api"`
	Tools      []ToolCheck `json:"tools"`
}

// CheckItem is a single pass/fail line.
type CheckItem struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// ToolCheck reports one local binary.
type ToolCheck struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Healthy reports whether every mandatory check passed.
func (r *DoctorReport) Healthy() bool {
	if !r.Config.OK || !r.APIKey.OK || !r.API.OK {
		return false
	}
	for _, t := range r.Tools {
		if t.Required && !t.Found {
			return false
		}
	}
	return true
}

// Doctor handles the doctor command.
func Doctor(ctx context.Context, opts Options, jsonOutput bool) error {
	report := diagnose(ctx, opts)

	if jsonOutput {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		printDoctor(report)
	}
	if !report.Healthy() {
		return &ExitCodeError{Code: 1}
	}
	return nil
}

func diagnose(ctx context.Context, opts Options) *DoctorReport {
	report := &DoctorReport{}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		report.Config = CheckItem{Detail: err.Error()}
		return report
	}
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	report.Config = CheckItem{OK: true, Detail: path}

	report.APIKey = checkAPIKey(cfg)

	if st, err := os.Stat(cfg.SecretsDir); err != nil || !st.IsDir() {
		report.SecretsDir = CheckItem{Detail: cfg.SecretsDir + " does not exist (created on first key save)"}
	} else {
		report.SecretsDir = CheckItem{OK: true, Detail: cfg.SecretsDir}
	}

	// tnr is only needed when keys are bootstrapped automatically.
	tnr := prerequisites.TnrCLI(cfg.CLIPath)
	tnr.Required = cfg.AutoSetupKeys
	results := prerequisites.Check(append([]prerequisites.Tool{tnr}, prerequisites.OptionalTools()...)).WithVersions(ctx)
	for _, r := range results.Results {
		report.Tools = append(report.Tools, ToolCheck{
			Name:     r.Tool.Name,
			Required: r.Tool.Required,
			Found:    r.Found,
			Path:     r.Path,
			Version:  r.Version,
		})
	}

	if report.APIKey.OK {
		report.API = checkAPI(ctx, cfg, opts)
	} else {
		report.API = CheckItem{Detail: "skipped: no API key"}
	}
	return report
}

func checkAPIKey(cfg *config.Config) CheckItem {
	if cfg.APIKey != "" {
		return CheckItem{OK: true, Detail: "from " + config.EnvAPIKey}
	}
	if _, err := keys.ReadAPIKey(cfg.APIKeyFile); err != nil {
		return CheckItem{Detail: err.Error()}
	}
	return CheckItem{OK: true, Detail: cfg.APIKeyFile}
}

func checkAPI(ctx context.Context, cfg *config.Config, opts Options) CheckItem {
	m, err := newManager(cfg, newLogger(opts))
	if err != nil {
		return CheckItem{Detail: err.Error()}
	}
	defer func() { _ = m.Close() }()

	records, err := m.Instances().ListInstances(ctx, true)
	if err != nil {
		return CheckItem{Detail: err.Error()}
	}
	return CheckItem{OK: true, Detail: fmt.Sprintf("%s (%d instances)", cfg.APIBaseURL, len(records))}
}

func printDoctor(r *DoctorReport) {
	fmt.Println(style(titleStyle, "tnrctl doctor"))
	line := func(label string, item CheckItem) {
		fmt.Printf("  %s %-12s %s\n", checkMark(item.OK), label, style(dimStyle, item.Detail))
	}
	line("config", r.Config)
	line("api key", r.APIKey)
	line("secrets dir", r.SecretsDir)
	line("api", r.API)

	if len(r.Tools) > 0 {
		fmt.Println(style(titleStyle, "Tools"))
	}
	for _, t := range r.Tools {
		mark := checkMark(t.Found)
		if !t.Found && !t.Required {
			mark = style(warnStyle, "!")
		}
		detail := t.Path
		if t.Version != "" {
			detail += " (" + t.Version + ")"
		}
		if !t.Found {
			detail = "not found"
		}
		fmt.Printf("  %s %-12s %s\n", mark, t.Name, style(dimStyle, detail))
	}
}
