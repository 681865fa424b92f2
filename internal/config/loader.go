package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration specifically for build operations
func (l *Loader) LoadForBuild(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("compiler_path", DefaultCompilerPath)
	viper.SetDefault("output_dir", DefaultOutputDir)
	viper.SetDefault("work_dir", DefaultWorkDir)
	viper.SetDefault("cache", "project")
	viper.SetDefault("storage.backend", DefaultBackend)
	viper.SetDefault("options.configuration", DefaultConfiguration)
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return
	}

	globalDir := filepath.Join(configDir, "fwb")

	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads project configuration found by upward search from
// the working directory
func (l *Loader) loadLocalConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	localPath := FindLocalConfig(cwd)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.ReadInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("output_dir", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("cache", cmd.Flags().Lookup("cache"))
	_ = viper.BindPFlag("overwrite", cmd.Flags().Lookup("overwrite"))
	_ = viper.BindPFlag("compiler_path", cmd.Flags().Lookup("compiler"))
	_ = viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
}
