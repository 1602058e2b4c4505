package config

import "github.com/mrz1836/tabula/internal/constants"

// DefaultConfig returns a Config with default values. setDefaults mirrors it
// for viper.
func DefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			ScriptDir: constants.DefaultScriptDir,
			DataDir:   constants.DefaultDataDir,
			PlanDir:   constants.DefaultPlanDir,
		},
		Output: OutputConfig{
			Dir: constants.DefaultOutputDir,
		},
		Execution: ExecutionConfig{
			PollInterval: constants.DefaultPollInterval,
		},
		Macro: MacroConfig{
			Extension: constants.WorkbookExt,
		},
		Data: DataConfig{
			EnvPrefix: constants.DataEnvPrefix,
		},
	}
}
