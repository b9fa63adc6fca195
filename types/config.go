/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose bool          `mapstructure:"verbose"`
	Config  string        `mapstructure:"config"`
	Project ProjectConfig `mapstructure:"project" validate:"required"`
	Git     GitConfig     `mapstructure:"git"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// ProjectConfig holds the workspace layout. The three plan locations
// (approved, archive, retry) are load-bearing: the engine consumes from
// approved, archives terminal successes, and parks failures for retry.
type ProjectConfig struct {
	RootDir      string `mapstructure:"rootDir" validate:"required"`
	WorkspaceDir string `mapstructure:"workspaceDir" validate:"required"`
	ProposedDir  string `mapstructure:"proposedDir" validate:"required"`
	ApprovedDir  string `mapstructure:"approvedDir" validate:"required"`
	ArchiveDir   string `mapstructure:"archiveDir" validate:"required"`
	RetryDir     string `mapstructure:"retryDir" validate:"required"`
	ReportsDir   string `mapstructure:"reportsDir" validate:"required"`
	ActivityLog  string `mapstructure:"activityLog" validate:"required"`
	LeaseFile    string `mapstructure:"leaseFile" validate:"required"`
}

// GitConfig holds version-control adapter settings.
type GitConfig struct {
	BranchPrefix    string `mapstructure:"branchPrefix"`
	CommitterName   string `mapstructure:"committerName"`
	CommitterEmail  string `mapstructure:"committerEmail"`
	AllowEmptyRepos bool   `mapstructure:"allowEmptyRepos"`
}

// RetryConfig holds defaults for the retry policy applied to tool dispatch.
// There is no ambient/global retry state; this struct is passed into the
// engine at construction.
type RetryConfig struct {
	MaxRetries      int     `mapstructure:"maxRetries" validate:"min=0,max=10"`
	InitialDelayMS  int     `mapstructure:"initialDelayMs" validate:"min=0"`
	MaxDelayMS      int     `mapstructure:"maxDelayMs" validate:"min=0"`
	Multiplier      float64 `mapstructure:"multiplier" validate:"omitempty,gte=1"`
	JitterFactor    float64 `mapstructure:"jitterFactor" validate:"gte=0,lte=1"`
	TemperatureStep float64 `mapstructure:"temperatureStep" validate:"gte=0"`
	MaxTemperature  float64 `mapstructure:"maxTemperature" validate:"gte=0"`
}
