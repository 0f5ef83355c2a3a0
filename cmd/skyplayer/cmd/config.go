package cmd

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/skyplayer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration",
	Long: `Print the effective configuration as YAML: defaults overlaid with the
config file and SKYPLAYER_* environment variables.

The output can be used as a starting point for a config file:

  skyplayer config dump > config.yaml

Environment variables use the SKYPLAYER_ prefix and underscores for nesting,
for example player.http_timeout -> SKYPLAYER_PLAYER_HTTP_TIMEOUT.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		return dumpConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

func dumpConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(toMap(cfg))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprintln(w, "# skyplayer configuration")
	fmt.Fprintln(w, "# Durations use Go syntax (500ms, 15s, 720h); sizes accept units (1MiB, 10MB).")
	_, err = w.Write(data)
	return err
}

// toMap converts a config struct to a map keyed by mapstructure tags, with
// durations and byte sizes formatted for people.
func toMap(v any) map[string]any {
	val := reflect.Indirect(reflect.ValueOf(v))
	typ := val.Type()
	out := make(map[string]any, val.NumField())

	for i := range val.NumField() {
		field := val.Field(i)
		key := typ.Field(i).Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(typ.Field(i).Name)
		}

		switch fv := field.Interface().(type) {
		case time.Duration:
			out[key] = fv.String()
		case int64:
			if strings.HasSuffix(key, "_bytes") {
				out[key] = humanize.IBytes(uint64(max(fv, 0)))
			} else {
				out[key] = fv
			}
		default:
			if field.Kind() == reflect.Struct {
				out[key] = toMap(fv)
			} else {
				out[key] = fv
			}
		}
	}
	return out
}
