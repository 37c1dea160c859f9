package config

// Config holds app configuration
type Config struct {
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`

	// NameEncoding is the code page of the fixed-width name fields
	// (cp437, windows-1252, latin1). Empty means cp437.
	NameEncoding string `mapstructure:"name_encoding"`

	// Strict turns integrity warnings into errors: unresolved modify
	// requests and payload/size disagreements in build
	Strict bool `mapstructure:"strict"`

	DryRun bool `mapstructure:"dry_run"`

	// Touch stamps the current time on replaced file entries during a repack
	Touch bool `mapstructure:"touch"`

	// Yes answers every overwrite prompt with yes
	Yes bool `mapstructure:"yes"`

	// ViewMode is how export-views refers to blobs (hardlink, symlink, copy)
	ViewMode string `mapstructure:"view_mode"`

	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}
