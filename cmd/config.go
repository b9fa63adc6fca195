/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davidmying/wingman/models"
	"github.com/davidmying/wingman/types"
)

const (
	configName = ".wingman"
	envPrefix  = "WINGMAN"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// InitConfig reads in config file and ENV variables if set.
func InitConfig() {
	// Load .env file first if present. It's okay if it doesn't exist.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix) // e.g., WINGMAN_VERBOSE
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfgFileFlag := viper.GetString("config")

	// The project root dir is needed *before* unmarshal to locate the config
	// file itself; fall back to the default directory name for the search.
	projectDir := viper.GetString("project.rootDir")
	if projectDir == "" {
		projectDir = configName
	}

	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		if _, err := os.Stat(projectDir); !os.IsNotExist(err) {
			viper.AddConfigPath(projectDir) // ./.wingman/.wingman.yaml
			viper.SetConfigName(configName)
		} else {
			home, err := os.UserHomeDir()
			cobra.CheckErr(err)
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigName(configName)
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFileFlag)
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
		}
	}

	viper.SetDefault("project.rootDir", configName)
	viper.SetDefault("project.workspaceDir", ".")
	viper.SetDefault("project.proposedDir", "plans/proposed")
	viper.SetDefault("project.approvedDir", "plans/approved")
	viper.SetDefault("project.archiveDir", "plans/archive")
	viper.SetDefault("project.retryDir", "plans/retry")
	viper.SetDefault("project.reportsDir", "reports")
	viper.SetDefault("project.activityLog", "activity.json")
	viper.SetDefault("project.leaseFile", "leases.json")

	viper.SetDefault("git.branchPrefix", "wingman")
	viper.SetDefault("git.committerName", "wingman")
	viper.SetDefault("git.committerEmail", "wingman@local")

	viper.SetDefault("retry.maxRetries", 3)
	viper.SetDefault("retry.initialDelayMs", 1000)
	viper.SetDefault("retry.maxDelayMs", 30000)
	viper.SetDefault("retry.multiplier", 2.0)
	viper.SetDefault("retry.jitterFactor", 0.2)
	viper.SetDefault("retry.temperatureStep", 0.1)
	viper.SetDefault("retry.maxTemperature", 1.0)

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling config: %s\n", err)
		os.Exit(1)
	}

	// A config file may exist but omit nested keys; re-apply the defaults.
	if GlobalAppConfig.Project.RootDir == "" {
		GlobalAppConfig.Project.RootDir = viper.GetString("project.rootDir")
	}
	if GlobalAppConfig.Project.WorkspaceDir == "" {
		GlobalAppConfig.Project.WorkspaceDir = viper.GetString("project.workspaceDir")
	}

	if err := models.ValidateStruct(&GlobalAppConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation error: %s\n", err)
		os.Exit(1)
	}
}

// GetConfig returns a pointer to the global types.AppConfig instance.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}

// projectPath resolves rel against the project root directory unless it is
// already absolute.
func projectPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(GetConfig().Project.RootDir, rel)
}

// ProposedDirPath returns the full path to the proposed-plans directory.
func ProposedDirPath() string { return projectPath(GetConfig().Project.ProposedDir) }

// ApprovedDirPath returns the full path to the approved-plans queue.
func ApprovedDirPath() string { return projectPath(GetConfig().Project.ApprovedDir) }

// ArchiveDirPath returns the full path to the plan archive.
func ArchiveDirPath() string { return projectPath(GetConfig().Project.ArchiveDir) }

// RetryDirPath returns the full path to the retry parking directory.
func RetryDirPath() string { return projectPath(GetConfig().Project.RetryDir) }

// ReportsDirPath returns the full path to the reports directory.
func ReportsDirPath() string { return projectPath(GetConfig().Project.ReportsDir) }

// ActivityLogPath returns the full path to the activity log file.
func ActivityLogPath() string { return projectPath(GetConfig().Project.ActivityLog) }

// LeaseFilePath returns the full path to the lease table file.
func LeaseFilePath() string { return projectPath(GetConfig().Project.LeaseFile) }

// MarkersDirPath returns the directory holding empty-plan commit markers.
func MarkersDirPath() string { return projectPath("markers") }
