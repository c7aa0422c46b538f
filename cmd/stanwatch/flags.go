package main

import (
	"github.com/spf13/cobra"

	"stanwatch/internal/config"
)

// analysisFlags maps command-line flags onto configuration keys.
var analysisFlags = []struct {
	name string
	key  string
}{
	{"level", config.KeyLevel},
	{"memory-limit", config.KeyMemoryLimit},
	{"configuration", config.KeyConfiguration},
	{"autoload-file", config.KeyAutoloadFile},
	{"no-progress", config.KeyNoProgress},
	{"binary", config.KeyBinary},
	{"timeout", config.KeyTimeout},
}

func addAnalysisFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("level", "", "rule level 0-9, max, or config to defer to phpstan.neon (default max)")
	f.String("memory-limit", "", "PHP memory limit passed to phpstan (default 256M)")
	f.String("configuration", "", "use this phpstan.neon and skip the search")
	f.String("autoload-file", "", "use this autoloader and skip the search")
	f.Bool("no-progress", true, "pass --no-progress to phpstan")
	f.String("binary", "", "phpstan executable (default vendor/bin/phpstan, then PATH)")
	f.Duration("timeout", config.DefaultTimeout, "kill phpstan after this long (0 disables)")
}

// flagValues returns a configuration layer holding only the flags the
// user set, so stanwatch.toml and the environment keep their say otherwise.
func flagValues(cmd *cobra.Command) (config.Values, error) {
	f := cmd.Flags()
	values := make(config.Values)
	for _, fl := range analysisFlags {
		if !f.Changed(fl.name) {
			continue
		}
		switch fl.name {
		case "no-progress":
			v, err := f.GetBool(fl.name)
			if err != nil {
				return nil, err
			}
			values[fl.key] = v
		case "timeout":
			v, err := f.GetDuration(fl.name)
			if err != nil {
				return nil, err
			}
			values[fl.key] = v
		default:
			v, err := f.GetString(fl.name)
			if err != nil {
				return nil, err
			}
			values[fl.key] = v
		}
	}
	return values, nil
}

// loadSettings layers defaults, stanwatch.toml, the environment and flags.
func loadSettings(cmd *cobra.Command, dir string) (config.Settings, string, error) {
	settings, path, err := config.Load(dir)
	if err != nil {
		return settings, path, err
	}
	values, err := flagValues(cmd)
	if err != nil {
		return settings, path, err
	}
	if err := settings.Apply(values); err != nil {
		return settings, path, err
	}
	return settings, path, nil
}
