package cli

import (
	"fmt"
	"io"

	"github.com/soyeahso/botkit/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect, validate or edit the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Check the configuration for problems",
			Args:  cobra.NoArgs,
			RunE:  runConfigValidate,
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print the value at a dotted key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRawConfig(args[0], false, func(raw map[string]any, path []string) error {
					v, ok := config.GetValueAtPath(raw, path)
					if !ok {
						return fmt.Errorf("key %q not found", args[0])
					}
					return printValue(cmd.OutOrStdout(), v)
				})
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Store a value at a dotted key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				v := parseValue(args[1])
				err := withRawConfig(args[0], true, func(raw map[string]any, path []string) error {
					config.SetValueAtPath(raw, path, v)
					return nil
				})
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", args[0], v)
				}
				return err
			},
		},
		&cobra.Command{
			Use:   "unset <key>",
			Short: "Remove the value at a dotted key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := withRawConfig(args[0], true, func(raw map[string]any, path []string) error {
					if !config.UnsetValueAtPath(raw, path) {
						return fmt.Errorf("key %q not found", args[0])
					}
					return nil
				})
				if err == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])
				}
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print where the config file lives",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
			},
		},
	)
	return cmd
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	c, err := loadedConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	issues := config.Validate(c)
	for _, is := range issues {
		fmt.Fprintln(out, is)
	}
	if n := len(issues); n > 0 {
		return fmt.Errorf("%d configuration issue(s)", n)
	}
	fmt.Fprintf(out, "%s: ok (%d providers)\n", paths.Config, len(c.Providers))
	return nil
}

// withRawConfig runs fn on the untyped config file at the parsed key and,
// when save is set and fn succeeds, writes the file back.
func withRawConfig(key string, save bool, fn func(raw map[string]any, path []string) error) error {
	path, err := config.ParseConfigPath(key)
	if err != nil {
		return err
	}
	raw, err := config.LoadRaw(paths.Config)
	if err != nil {
		return err
	}
	if err := fn(raw, path); err != nil {
		return err
	}
	if !save {
		return nil
	}
	return config.SaveRaw(paths.Config, raw)
}

// printValue writes scalars on one line and maps or lists as YAML.
func printValue(w io.Writer, v any) error {
	switch v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	_, err := fmt.Fprintln(w, v)
	return err
}

// parseValue keeps booleans and numbers typed the way YAML reads them.
// Anything else stays a string.
func parseValue(s string) any {
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case bool, int, float64:
		return v
	}
	return s
}
