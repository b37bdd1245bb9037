package models

import "time"

// Config is the fabdrop configuration file.
type Config struct {
	Workspace   string          `yaml:"workspace" mapstructure:"workspace"`
	WorkspaceID string          `yaml:"workspace_id,omitempty" mapstructure:"workspace_id"`
	LakehouseID string          `yaml:"lakehouse_id,omitempty" mapstructure:"lakehouse_id"`
	DataFile    string          `yaml:"data_file" mapstructure:"data_file"`
	Variable    string          `yaml:"variable" mapstructure:"variable"`
	FiscalYear  string          `yaml:"fiscal_year" mapstructure:"fiscal_year"`
	Fabric      FabricConfig    `yaml:"fabric" mapstructure:"fabric"`
	Polling     PollingConfig   `yaml:"polling" mapstructure:"polling"`
	Lakehouse   LakehouseConfig `yaml:"lakehouse" mapstructure:"lakehouse"`
	Report      ReportConfig    `yaml:"report" mapstructure:"report"`
	KPIs        KPIConfig       `yaml:"kpis" mapstructure:"kpis"`
	Auth        AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Backup      BackupConfig    `yaml:"backup" mapstructure:"backup"`
	Logging     LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// FabricConfig holds service endpoints.
type FabricConfig struct {
	APIURL         string `yaml:"api_url" mapstructure:"api_url"`
	PowerBIURL     string `yaml:"powerbi_url" mapstructure:"powerbi_url"`
	OneLakeBlobURL string `yaml:"onelake_blob_url" mapstructure:"onelake_blob_url"`
	OneLakeDFSURL  string `yaml:"onelake_dfs_url" mapstructure:"onelake_dfs_url"`
	ADOURL         string `yaml:"ado_url" mapstructure:"ado_url"`
}

// PollingConfig controls long-running operation polling.
type PollingConfig struct {
	Interval    time.Duration `yaml:"interval" mapstructure:"interval"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait" mapstructure:"initial_wait"`
}

// LakehouseConfig controls CSV export and upload.
type LakehouseConfig struct {
	UploadFolder string `yaml:"upload_folder" mapstructure:"upload_folder"`
	ExportDir    string `yaml:"export_dir" mapstructure:"export_dir"`
}

// ReportConfig names the deployed items and how they reach git.
type ReportConfig struct {
	ModelName  string `yaml:"model_name" mapstructure:"model_name"`
	ReportName string `yaml:"report_name" mapstructure:"report_name"`
	DebugDir   string `yaml:"debug_dir" mapstructure:"debug_dir"`
	Pusher     string `yaml:"pusher" mapstructure:"pusher"` // ado or local
	RepoPath   string `yaml:"repo_path,omitempty" mapstructure:"repo_path"`
	Remote     string `yaml:"remote,omitempty" mapstructure:"remote"`
}

// KPIConfig maps external KPI names to semantic model measures.
type KPIConfig struct {
	Dataset     string `yaml:"dataset,omitempty" mapstructure:"dataset"`
	SnowMeasure string `yaml:"snow_measure" mapstructure:"snow_measure"`
	ICMMeasure  string `yaml:"icm_measure" mapstructure:"icm_measure"`
}

// AuthConfig selects the token provider.
type AuthConfig struct {
	Provider string        `yaml:"provider" mapstructure:"provider"` // azcli, env, keyring, chain
	AzPath   string        `yaml:"az_path" mapstructure:"az_path"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BackupConfig controls the copies kept before the data file is rewritten.
// Keep 0 disables backups. An empty Dir means .fabdrop/backups beside the
// data file.
type BackupConfig struct {
	Dir  string `yaml:"dir,omitempty" mapstructure:"dir"`
	Keep int    `yaml:"keep" mapstructure:"keep"`
}

// LoggingConfig controls the run log.
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Workspace:  "scm-dev",
		DataFile:   "data.js",
		Variable:   "defaultRawData",
		FiscalYear: "FY26",
		Fabric: FabricConfig{
			APIURL:         "https://api.fabric.microsoft.com/v1",
			PowerBIURL:     "https://api.powerbi.com/v1.0/myorg",
			OneLakeBlobURL: "https://onelake.blob.fabric.microsoft.com",
			OneLakeDFSURL:  "https://onelake.dfs.fabric.microsoft.com",
			ADOURL:         "https://dev.azure.com",
		},
		Polling: PollingConfig{
			Interval:    5 * time.Second,
			MaxAttempts: 30,
			InitialWait: 10 * time.Second,
		},
		Lakehouse: LakehouseConfig{
			UploadFolder: "sls_mbr_data",
			ExportDir:    "lakehouse_data",
		},
		Report: ReportConfig{
			ModelName:  "SLS MBR",
			ReportName: "SLS MBR Report",
			DebugDir:   "debug_report_fabric",
			Pusher:     "ado",
			Remote:     "origin",
		},
		KPIs: KPIConfig{
			SnowMeasure: "SNOW Tickets MTD",
			ICMMeasure:  "ICM Tickets MTD",
		},
		Auth: AuthConfig{
			Provider: "chain",
			AzPath:   "az",
			Timeout:  30 * time.Second,
		},
		Backup: BackupConfig{
			Keep: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "fabdrop.log",
		},
	}
}
