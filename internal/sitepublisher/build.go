// Copyright 2025 James Ross
package sitepublisher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/content-forge/pipeline/internal/config"
)

// BuildResult captures everything spec.md §4.7 step 4 asks the caller to
// be able to surface on failure: stdout, stderr, and wall time.
type BuildResult struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

// runBuild invokes the external static-site-generator binary as a
// subprocess rooted at workDir. The generator itself (Hugo or
// equivalent) is out of scope (spec.md §1 Non-goals) — this only owns
// invoking it and capturing its result.
func runBuild(ctx context.Context, cfg config.SitePublisherConfig, workDir string) (BuildResult, error) {
	buildCtx, cancel := context.WithTimeout(ctx, cfg.BuildTimeout)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, cfg.BuildCommand, cfg.BuildArgs...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := BuildResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if isExitError(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, fmt.Errorf("sitepublisher: build command failed: %w", err)
	}
	return result, nil
}

func isExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
