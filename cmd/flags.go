package cmd

import (
	"github.com/sanix-darker/aireview/internal/config"
	"github.com/sanix-darker/aireview/internal/provider"
	"github.com/sanix-darker/aireview/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	flagProvider    = "provider"
	flagModel       = "model"
	flagEndpoint    = "endpoint"
	flagAPIPath     = "api-path"
	flagTimeout     = "timeout"
	flagRetry       = "retry"
	flagTemperature = "temperature"
	flagMaxTokens   = "max-tokens"
	flagNoFailover  = "no-failover"
)

// addModelFlags registers the flags overriding the model settings.
func addModelFlags(fs *pflag.FlagSet) {
	fs.String(flagProvider, "", "provider to use (ollama | openrouter)")
	fs.StringP(flagModel, "m", "", "model name")
	fs.String(flagEndpoint, "", "provider endpoint, e.g. http://localhost:11434")
	fs.String(flagAPIPath, "", "API path, e.g. /api/generate or /api/chat")
	fs.Duration(flagTimeout, 0, "read timeout per attempt (raised to 30s at least)")
	fs.Int(flagRetry, 0, "total number of attempts")
	fs.Float64(flagTemperature, 0, "sampling temperature (0.0 - 2.0)")
	fs.Int(flagMaxTokens, 0, "maximum number of tokens to generate")
	fs.Bool(flagNoFailover, false, "never switch to another model after a timeout")
}

// resolveModelConfig builds the model config from the configuration and
// the flags set on the command line.
func resolveModelConfig(c *config.Config, fs *pflag.FlagSet) (provider.ModelConfig, error) {
	if fs.Changed(flagProvider) {
		p, _ := fs.GetString(flagProvider)
		c.Viper.Set(provider.KeyProvider, p)
	}
	mc, err := c.ModelConfig()
	if err != nil {
		return mc, err
	}
	applyFlags(fs, &mc)
	return mc, nil
}

// applyFlags overrides mc with every flag explicitly set.
func applyFlags(fs *pflag.FlagSet, mc *provider.ModelConfig) {
	if fs.Changed(flagModel) {
		mc.ModelName, _ = fs.GetString(flagModel)
	}
	if fs.Changed(flagEndpoint) {
		mc.Endpoint, _ = fs.GetString(flagEndpoint)
	}
	if fs.Changed(flagAPIPath) {
		mc.APIPath, _ = fs.GetString(flagAPIPath)
	}
	if fs.Changed(flagTimeout) {
		mc.Timeout, _ = fs.GetDuration(flagTimeout)
	}
	if fs.Changed(flagRetry) {
		mc.RetryCount, _ = fs.GetInt(flagRetry)
	}
	if fs.Changed(flagTemperature) {
		mc.Temperature, _ = fs.GetFloat64(flagTemperature)
	}
	if fs.Changed(flagMaxTokens) {
		mc.MaxTokens, _ = fs.GetInt(flagMaxTokens)
	}
	if fs.Changed(flagNoFailover) {
		noFailover, _ := fs.GetBool(flagNoFailover)
		mc.Failover = !noFailover
	}
}

// reviewOptions are the flags shared by the review commands.
type reviewOptions struct {
	template     string
	templateFile string
	perFile      bool
	noSave       bool
	json         bool
	copy         bool
	outputDir    string
	concurrency  int
}

func addReviewFlags(cmd *cobra.Command, o *reviewOptions) {
	fs := cmd.Flags()
	fs.StringVarP(&o.template, "template", "t", "", "review template name (see `aireview templates list`)")
	fs.StringVar(&o.templateFile, "template-file", "", "read the review template from a file")
	fs.BoolVar(&o.perFile, "per-file", false, "review every file separately, in parallel")
	fs.IntVarP(&o.concurrency, "concurrency", "j", 0, "parallel requests with --per-file")
	fs.BoolVar(&o.noSave, "no-save", false, "do not write the report file")
	fs.StringVarP(&o.outputDir, "output", "o", "", "directory of the report file")
	fs.BoolVar(&o.json, "json", false, "print the results as JSON")
	fs.BoolVar(&o.copy, "copy", false, "copy the review to the clipboard")
}

// gitFlags are the repository flags of the git based commands.
var gitFlags = []models.FlagStruct{
	{
		Label:        "repo",
		Short:        "r",
		DefaultValue: ".",
		Description:  "target git repository (local path).",
	},
	{
		Label:        "path",
		Short:        "p",
		DefaultValue: "",
		Description:  "only review these files/directories (comma separated)",
	},
}

func addGitFlags(cmd *cobra.Command) {
	for _, fg := range gitFlags {
		fg.Register(cmd.Flags())
	}
}
