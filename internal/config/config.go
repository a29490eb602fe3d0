// Package config loads application configuration from global and local files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/digest/internal/utils"
)

const (
	// ConfigFileName is the configuration file discovered in the working directory.
	ConfigFileName = ".digest.yaml"
	// GlobalConfigDirectoryName is the directory under the user config root
	// holding the global configuration file.
	GlobalConfigDirectoryName = "digest"
	// globalConfigFileName is the global configuration file name.
	globalConfigFileName = "config.yaml"
	// environmentPrefix namespaces environment variable overrides.
	environmentPrefix = "DIGEST"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds user defaults for the digest commands.
type ApplicationConfiguration struct {
	// Exclude replaces the default exclusion pattern set when non-empty.
	Exclude []string `mapstructure:"exclude"`
	// Extensions is the extension filter list; empty matches every file.
	Extensions []string `mapstructure:"extensions"`
	// Root is the default root directory when a command receives no path.
	Root   string             `mapstructure:"root"`
	Tokens TokenConfiguration `mapstructure:"tokens"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Model string `mapstructure:"model"`
}

// Merge overlays override onto the receiver returning the combined configuration.
func (configuration ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	merged := configuration
	if len(override.Exclude) > 0 {
		merged.Exclude = override.Exclude
	}
	if len(override.Extensions) > 0 {
		merged.Extensions = override.Extensions
	}
	if override.Root != "" {
		merged.Root = override.Root
	}
	if override.Tokens.Model != "" {
		merged.Tokens.Model = override.Tokens.Model
	}
	return merged
}

// LoadApplicationConfiguration loads configuration from the global file, the
// local file, and DIGEST_* environment variables, in increasing precedence.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if userConfigDirectory, userConfigError := os.UserConfigDir(); userConfigError == nil && userConfigDirectory != "" {
		globalPath := filepath.Join(userConfigDirectory, GlobalConfigDirectoryName, globalConfigFileName)
		globalConfiguration, loadError := loadConfigurationFromPath(globalPath)
		if loadError != nil {
			return ApplicationConfiguration{}, loadError
		}
		merged = merged.Merge(globalConfiguration)
	}

	localPath := options.ExplicitFilePath
	if localPath == "" {
		localPath = filepath.Join(workingDirectory, ConfigFileName)
	} else if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(workingDirectory, localPath)
	}
	localConfiguration, loadError := loadConfigurationFromPath(localPath)
	if loadError != nil {
		return ApplicationConfiguration{}, loadError
	}
	merged = merged.Merge(localConfiguration)
	merged = merged.Merge(environmentConfiguration())

	merged.Exclude = utils.DeduplicatePatterns(merged.Exclude)
	merged.Extensions = utils.DeduplicatePatterns(merged.Extensions)

	return merged, nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	pathInformation, statError := os.Stat(path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statError)
	}
	if pathInformation.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	if readError := reader.ReadInConfig(); readError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readError)
	}
	var configuration ApplicationConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeError)
	}
	return configuration, nil
}

// environmentConfiguration reads DIGEST_* overrides. List values are
// comma-separated free text, matching the configuration surface of the UI.
func environmentConfiguration() ApplicationConfiguration {
	reader := viper.New()
	reader.SetEnvPrefix(environmentPrefix)
	reader.AutomaticEnv()

	var configuration ApplicationConfiguration
	if rawExclude := reader.GetString("exclude"); rawExclude != "" {
		configuration.Exclude = utils.SplitCommaList(rawExclude)
	}
	if rawExtensions := reader.GetString("extensions"); rawExtensions != "" {
		configuration.Extensions = utils.SplitCommaList(rawExtensions)
	}
	if rawRoot := reader.GetString("root"); rawRoot != "" {
		configuration.Root = rawRoot
	}
	if rawModel := reader.GetString("model"); rawModel != "" {
		configuration.Tokens.Model = rawModel
	}
	return configuration
}
