package health

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haasonsaas/hipreport/pkg/config"
	"github.com/haasonsaas/hipreport/pkg/posture"
)

// HealthStatus reports whether a HIP report can be produced on this host.
type HealthStatus struct {
	InstallDirPresent bool     `json:"install_dir_present"`
	ToolExecutable    bool     `json:"tool_executable"`
	OSDescription     string   `json:"os_description"`
	LogWritable       bool     `json:"log_writable"`
	Healthy           bool     `json:"healthy"`
	Issues            []string `json:"issues,omitempty"`
}

// Check inspects the install dir, the HIP tool, os-release and, with debug
// enabled, the debug log location. It never runs the tool.
func Check(cfg *config.Config) *HealthStatus {
	status := &HealthStatus{
		Healthy: true,
		Issues:  []string{},
	}

	if info, err := os.Stat(cfg.GlobalProtect.InstallDir); err != nil {
		status.fail(fmt.Sprintf("install dir %s: %v", cfg.GlobalProtect.InstallDir, err))
	} else if !info.IsDir() {
		status.fail(fmt.Sprintf("install dir %s is not a directory", cfg.GlobalProtect.InstallDir))
	} else {
		status.InstallDirPresent = true
	}

	if err := checkExecutable(cfg.GlobalProtect.Tool); err != nil {
		status.fail(err.Error())
	} else {
		status.ToolExecutable = true
	}

	desc, err := describe(cfg.OSRelease.Path)
	switch {
	case err == nil:
		status.OSDescription = desc
	case cfg.OSRelease.AllowMissing && errors.Is(err, posture.ErrNoOSDescription):
		// the report is written with an empty host-info os
	default:
		status.fail(err.Error())
	}

	status.LogWritable = true
	if cfg.Logging.Debug {
		if err := checkWritableDir(filepath.Dir(cfg.Logging.File)); err != nil {
			status.LogWritable = false
			status.fail(fmt.Sprintf("debug log %s: %v", cfg.Logging.File, err))
		}
	}

	return status
}

func (s *HealthStatus) fail(issue string) {
	s.Healthy = false
	s.Issues = append(s.Issues, issue)
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("HIP tool %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("HIP tool %s is not a regular file", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("HIP tool %s is not executable", path)
	}
	return nil
}

func describe(path string) (string, error) {
	rel, err := posture.ReadOSRelease(path)
	if err != nil {
		return "", fmt.Errorf("os-release %s: %w", path, err)
	}
	desc, err := rel.Description()
	if err != nil {
		return "", fmt.Errorf("os-release %s: %w", path, err)
	}
	return desc, nil
}

func checkWritableDir(dir string) error {
	f, err := os.CreateTemp(dir, ".genhip-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
