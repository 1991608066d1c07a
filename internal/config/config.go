package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	printers "github.com/sanix-darker/aireview/internal/printers"
	"github.com/sanix-darker/aireview/internal/provider"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix        = "AIREVIEW"
	ConfigDirPath    = "~/.config/aireview"
	ConfigFileName   = "config.yml"
	TemplatesDirPath = ConfigDirPath + "/templates"
	DefaultOutputDir = ".ai-codereview"
)

// Keys of the settings that are not model settings; those live in the
// provider package.
const (
	KeyDebug        = "debug"
	KeyLanguage     = "language"
	KeyTemplate     = "review.template"
	KeyTemplatesDir = "review.templates_dir"
	KeyOutputDir    = "review.output_dir"
	KeySave         = "review.save"
	KeyConcurrency  = "review.concurrency"
)

var ErrConfigExists = errors.New("config file already exists")

// Config contains the entire cli dependencies
type Config struct {
	Viper          *viper.Viper
	ConfigFilePath string

	Debug        bool
	Language     string
	Template     string
	TemplatesDir string
	OutputDir    string
	Save         bool
	Concurrency  int

	Printers printers.IPrinters

	//io Writers useful for testing
	InReader  io.Reader
	OutWriter io.Writer
	ErrWriter io.Writer
}

// NewDefaultConfig creates a config holding only defaults and environment
// values; no file is read.
func NewDefaultConfig() Config {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, _ := DefaultConfigFilePath()
	conf := Config{
		Viper:          v,
		ConfigFilePath: path,
		Printers:       printers.NewPrinters(),
		InReader:       os.Stdin,
		OutWriter:      os.Stdout,
		ErrWriter:      os.Stderr,
	}
	conf.Refresh()
	return conf
}

// Load reads the config file at path, or at the default location when path
// is empty. A missing file is not an error; an unreadable one is.
func Load(path string) (Config, error) {
	conf := NewDefaultConfig()
	if strings.TrimSpace(path) != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return conf, fmt.Errorf("config path %q: %w", path, err)
		}
		conf.ConfigFilePath = expanded
	}
	if conf.ConfigFilePath == "" {
		return conf, nil
	}

	conf.Viper.SetConfigFile(conf.ConfigFilePath)
	conf.Viper.SetConfigType("yaml")
	if err := conf.Viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return conf, fmt.Errorf("failed to read config %s: %w", conf.ConfigFilePath, err)
		}
	}
	conf.Refresh()
	return conf, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	provider.SetDefaults(v)
	v.SetDefault(KeyDebug, false)
	v.SetDefault(KeyLanguage, "en")
	v.SetDefault(KeyTemplate, "concise")
	v.SetDefault(KeyTemplatesDir, TemplatesDirPath)
	v.SetDefault(KeyOutputDir, DefaultOutputDir)
	v.SetDefault(KeySave, true)
	v.SetDefault(KeyConcurrency, 2)
}

// Refresh copies the viper settings into the struct fields. Call it again
// after binding flags.
func (c *Config) Refresh() {
	v := c.Viper
	c.Debug = v.GetBool(KeyDebug)
	c.Language = strings.TrimSpace(v.GetString(KeyLanguage))
	c.Template = strings.TrimSpace(v.GetString(KeyTemplate))
	c.TemplatesDir = strings.TrimSpace(v.GetString(KeyTemplatesDir))
	c.OutputDir = strings.TrimSpace(v.GetString(KeyOutputDir))
	c.Save = v.GetBool(KeySave)
	c.Concurrency = v.GetInt(KeyConcurrency)
}

// ModelConfig resolves the settings of the active provider.
func (c Config) ModelConfig() (provider.ModelConfig, error) {
	return provider.ResolveModelConfig(c.Viper)
}

// Problems lists everything wrong with the effective configuration.
func (c Config) Problems() []string {
	var out []string
	mc, err := c.ModelConfig()
	if err != nil {
		out = append(out, err.Error())
	} else {
		out = append(out, mc.Problems()...)
	}
	if _, err := provider.ResolveBackoff(c.Viper); err != nil {
		out = append(out, err.Error())
	}
	if c.Language == "" {
		out = append(out, "language must not be blank")
	}
	if c.Concurrency < 1 {
		out = append(out, fmt.Sprintf("%s %d must be 1 or more", KeyConcurrency, c.Concurrency))
	}
	return out
}

// EffectiveYAML renders the merged settings (defaults, file, environment)
// as YAML with secrets redacted. mc is the model config actually used, flag
// overrides included; it replaces the settings of the active provider.
func (c Config) EffectiveYAML(mc provider.ModelConfig) ([]byte, error) {
	settings := c.Viper.AllSettings()

	settings[provider.KeyProvider] = string(mc.Provider)
	settings[provider.KeyTemperature] = mc.Temperature
	settings[provider.KeyMaxTokens] = mc.MaxTokens
	settings[provider.KeyTimeout] = mc.Timeout.String()
	settings[provider.KeyRetryCount] = mc.RetryCount
	settings[provider.KeyFailover] = mc.Failover

	providers, _ := settings["providers"].(map[string]interface{})
	if providers == nil {
		providers = map[string]interface{}{}
		settings["providers"] = providers
	}
	block, _ := providers[string(mc.Provider)].(map[string]interface{})
	if block == nil {
		block = map[string]interface{}{}
		providers[string(mc.Provider)] = block
	}
	block["endpoint"] = mc.Endpoint
	block["api_path"] = mc.APIPath
	block["model"] = mc.ModelName
	block["api_key"] = mc.APIKey

	redact(settings)
	return yaml.Marshal(settings)
}

// WriteSample writes the documented sample config to path. An existing file
// is only replaced when force is set.
func WriteSample(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(provider.SampleConfigYAML()), 0o644)
}

// DefaultConfigFilePath returns ~/.config/aireview/config.yml expanded.
func DefaultConfigFilePath() (string, error) {
	dir, err := homedir.Expand(ConfigDirPath)
	if err != nil {
		return "", fmt.Errorf("failed to read home directory: %s", err)
	}
	return filepath.Join(dir, ConfigFileName), nil
}

const redacted = "***"

func redact(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case map[string]interface{}:
			redact(val)
		case string:
			if strings.EqualFold(k, "api_key") && val != "" {
				m[k] = redacted
			}
		}
	}
}
