package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const Version = "v1"

// Config is the configuration of mdedit read from mdedit.yaml files.
type Config struct {
	Version string       `yaml:"version" validate:"required,eq=v1"`
	Editor  EditorConfig `yaml:"editor"`
	Log     LogConfig    `yaml:"log"`
	Backup  BackupConfig `yaml:"backup"`
	Remote  RemoteConfig `yaml:"remote"`
}

type EditorConfig struct {
	// Debounce is the quiet period after user input before the view
	// reports its content.
	Debounce      time.Duration `yaml:"debounce" validate:"gte=0"`
	HardWraps     bool          `yaml:"hardWraps"`
	Tables        bool          `yaml:"tables"`
	Strikethrough bool          `yaml:"strikethrough"`
}

type LogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Verbose bool   `yaml:"verbose"`
}

type BackupConfig struct {
	Dir string `yaml:"dir" validate:"required_with=Interval"`
	// Interval between backups of a served document. Zero disables them.
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

type RemoteConfig struct {
	BaseURL   string         `yaml:"baseURL" validate:"required,url"`
	TokenEnv  string         `yaml:"tokenEnv" validate:"required"`
	Folder    string         `yaml:"folder" validate:"required"`
	Converter string         `yaml:"converter" validate:"oneof=core html-to-markdown"`
	Mappings  MappingsConfig `yaml:"mappings"`
}

type MappingsConfig struct {
	Driver string `yaml:"driver" validate:"oneof=yaml sqlite"`
	Path   string `yaml:"path" validate:"required"`
}

// ParseYAML parses data on top of the defaults.
func ParseYAML(data []byte) (*Config, error) {
	return parseYAML(Default(), data)
}

func parseYAML(base *Config, data []byte) (*Config, error) {
	version, err := parseVersionFromYAML(data)
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, errors.Errorf("unknown version: %s", version)
	}

	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal yaml")
	}

	if err := validateConfig(base); err != nil {
		return nil, errors.Wrap(err, "failed to validate config")
	}
	return base, nil
}

type versionOnly struct {
	Version string `yaml:"version"`
}

func parseVersionFromYAML(data []byte) (string, error) {
	var result versionOnly

	if err := yaml.Unmarshal(data, &result); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal version")
	}

	return result.Version, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateConfig(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WithStack(err)
	}

	var result error
	for _, fe := range fieldErrs {
		result = multierr.Append(result, fmt.Errorf("%s: failed on %q", fe.Namespace(), fe.Tag()))
	}
	return result
}
