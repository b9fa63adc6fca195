/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/davidmying/wingman/internal/audit"
	"github.com/davidmying/wingman/internal/engine"
	"github.com/davidmying/wingman/internal/git"
	"github.com/davidmying/wingman/internal/lease"
	"github.com/davidmying/wingman/internal/report"
	"github.com/davidmying/wingman/internal/retry"
	"github.com/davidmying/wingman/internal/tools"
	"github.com/davidmying/wingman/types"
)

// buildEngine assembles the execution engine from the global configuration.
// CLI invocations are short-lived, so the audit log saves synchronously.
func buildEngine() (*engine.Engine, *audit.Log, error) {
	cfg := GetConfig()

	leases, err := lease.NewStore(LeaseFilePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open lease store: %w", err)
	}

	log := audit.NewSyncLog(ActivityLogPath())
	leases.SetAuditor(log)

	gitClient := git.NewClient(cfg.Project.WorkspaceDir,
		git.WithBranchPrefix(cfg.Git.BranchPrefix),
		git.WithCommitter(cfg.Git.CommitterName, cfg.Git.CommitterEmail),
	)

	registry := tools.NewFilesystemRegistry(afero.NewOsFs(), cfg.Project.WorkspaceDir)

	policy := retry.NewPolicy(retryConfig(cfg.Retry))

	reports := report.NewWriter(ReportsDirPath(), ArchiveDirPath(), RetryDirPath())

	eng := engine.New(engine.Options{
		Leases:      leases,
		Git:         gitClient,
		Dispatcher:  registry,
		Policy:      policy,
		Audit:       log,
		Reports:     reports,
		ApprovedDir: ApprovedDirPath(),
		MarkersDir:  MarkersDirPath(),
	})
	return eng, log, nil
}

func retryConfig(rc types.RetryConfig) retry.Config {
	return retry.Config{
		MaxRetries:      rc.MaxRetries,
		InitialDelay:    time.Duration(rc.InitialDelayMS) * time.Millisecond,
		MaxDelay:        time.Duration(rc.MaxDelayMS) * time.Millisecond,
		Multiplier:      rc.Multiplier,
		JitterFactor:    rc.JitterFactor,
		TemperatureStep: rc.TemperatureStep,
		MaxTemperature:  rc.MaxTemperature,
		RetryableKinds:  []types.ErrorKind{types.KindTransient},
	}
}
