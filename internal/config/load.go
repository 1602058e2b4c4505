package config

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/errors"
)

// newViperInstance creates a Viper instance with the TABULA_ env prefix and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TABULA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from defaults, the global and project config
// files, and TABULA_* environment variables. Missing files are not errors.
func Load(ctx context.Context) (*Config, error) {
	global := ""
	if path, err := GlobalConfigPath(); err == nil && fileExists(path) {
		global = path
	}
	project := ""
	if fileExists(ProjectConfigPath()) {
		project = ProjectConfigPath()
	}

	cfg, err := LoadFromPaths(ctx, project, global)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "config").
		Str("output.dir", cfg.Output.Dir).
		Dur("execution.poll_interval", cfg.Execution.PollInterval).
		Int("execution.max_parallel", cfg.Execution.MaxParallel).
		Bool("execution.reset_fail_fast", cfg.Execution.ResetFailFast).
		Msg("configuration loaded")

	return cfg, nil
}

// LoadFile loads configuration with path as the only config file. Used by --config.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	if !fileExists(path) {
		return nil, errors.Wrapf(errors.ErrConfigNotFound, "config %s", path)
	}
	return LoadFromPaths(ctx, path, "")
}

// LoadFromPaths loads configuration from specific files. Either path can be
// empty. The project file merges over the global one.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// LoadWithOverrides loads configuration, then applies non-zero CLI values.
func LoadWithOverrides(ctx context.Context, configFile string, overrides *Config) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if configFile != "" {
		cfg, err = LoadFile(ctx, configFile)
	} else {
		cfg, err = Load(ctx)
	}
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// setDefaults configures viper defaults. Keys must match the mapstructure tags.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project.script_dir", constants.DefaultScriptDir)
	v.SetDefault("project.data_dir", constants.DefaultDataDir)
	v.SetDefault("project.plan_dir", constants.DefaultPlanDir)

	v.SetDefault("output.dir", constants.DefaultOutputDir)
	v.SetDefault("output.open_results", false)
	v.SetDefault("output.open_command", "")

	v.SetDefault("execution.reset_fail_fast", false)
	v.SetDefault("execution.poll_interval", constants.DefaultPollInterval.String())
	v.SetDefault("execution.interactive_pause", false)
	v.SetDefault("execution.max_parallel", 0)
	v.SetDefault("execution.start_interval", "0s")

	v.SetDefault("macro.extension", constants.WorkbookExt)

	v.SetDefault("data.settings", map[string]string{})
	v.SetDefault("data.excluded_keys", []string{})
	v.SetDefault("data.env_prefix", constants.DataEnvPrefix)
}

func applyOverrides(cfg, overrides *Config) {
	if overrides.Output.Dir != "" {
		cfg.Output.Dir = overrides.Output.Dir
	}
	if overrides.Output.OpenResults {
		cfg.Output.OpenResults = true
	}
	if overrides.Project.ScriptDir != "" {
		cfg.Project.ScriptDir = overrides.Project.ScriptDir
	}
	if overrides.Project.DataDir != "" {
		cfg.Project.DataDir = overrides.Project.DataDir
	}
	if overrides.Project.PlanDir != "" {
		cfg.Project.PlanDir = overrides.Project.PlanDir
	}
	if overrides.Execution.ResetFailFast {
		cfg.Execution.ResetFailFast = true
	}
	if overrides.Execution.InteractivePause {
		cfg.Execution.InteractivePause = true
	}
	if overrides.Execution.PollInterval > 0 {
		cfg.Execution.PollInterval = overrides.Execution.PollInterval
	}
	if overrides.Execution.MaxParallel > 0 {
		cfg.Execution.MaxParallel = overrides.Execution.MaxParallel
	}
	if overrides.Execution.StartInterval > 0 {
		cfg.Execution.StartInterval = overrides.Execution.StartInterval
	}
	for k, val := range overrides.Data.Settings {
		if cfg.Data.Settings == nil {
			cfg.Data.Settings = make(map[string]string, len(overrides.Data.Settings))
		}
		cfg.Data.Settings[k] = val
	}
}

// viperDecoderOption lets durations be written as "500ms" and lists as "a,b".
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)
}
