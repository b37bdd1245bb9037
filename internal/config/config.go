package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fabdrop/internal/common"
	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FABDROP_WORKSPACE.
const EnvPrefix = "FABDROP"

// ConfigEnvVar points at an explicit config file.
const ConfigEnvVar = "FABDROP_CONFIG"

func GetConfigPath() string {
	if configPath := os.Getenv(ConfigEnvVar); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fabdrop")
}

func GetConfigFile() string {
	if configFile := os.Getenv(ConfigEnvVar); configFile != "" {
		cleaned, err := common.CleanPath(configFile)
		if err != nil {
			return filepath.Join(GetConfigPath(), "fabdrop.yaml")
		}
		return cleaned
	}
	return filepath.Join(GetConfigPath(), "fabdrop.yaml")
}

// Loader layers defaults, the config file, .env and FABDROP_* variables,
// and bound command-line flags, in increasing priority.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader seeded with models.DefaultConfig.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := yaml.Marshal(models.DefaultConfig())
	if err == nil {
		_ = v.ReadConfig(bytes.NewReader(defaults))
	}
	return &Loader{v: v}
}

// BindFlag lets a command-line flag override key when the flag was set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads configFile, or the first fabdrop.yaml found in the working
// directory or GetConfigPath(). A missing file is not an error.
func (l *Loader) Load(configFile string) (*models.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "failed to read .env")
	}

	path, err := l.resolve(configFile)
	if err != nil {
		return nil, err
	}
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.MergeInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid,
				fmt.Sprintf("failed to read config file %s", path)).
				WithContext("file", path)
		}
	}

	var config models.Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, "failed to decode config")
	}
	return &config, nil
}

// ConfigFileUsed returns the file merged by Load, or "".
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) resolve(configFile string) (string, error) {
	if configFile == "" {
		configFile = os.Getenv(ConfigEnvVar)
	}
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return "", apperrors.NotFound("config file", configFile)
		}
		return configFile, nil
	}
	candidates := []string{"fabdrop.yaml", filepath.Join(GetConfigPath(), "fabdrop.yaml")}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// Load is a convenience for NewLoader().Load(configFile).
func Load(configFile string) (*models.Config, error) {
	return NewLoader().Load(configFile)
}

// Save writes config as YAML to path, or to GetConfigFile() when path is empty.
func Save(config *models.Config, path string) error {
	if path == "" {
		path = GetConfigFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := common.WriteFileAtomic(path, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}
