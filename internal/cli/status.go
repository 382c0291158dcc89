package cli

import (
	"fmt"
	"sort"

	"github.com/soyeahso/botkit/internal/config"
	"github.com/soyeahso/botkit/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show paths, providers and replication settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "botkit %s (commit %s)\n\n", version.Version, version.Commit)
			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Data:      %s\n", paths.Data)
			fmt.Fprintln(out)

			c, err := loadedConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}

			names := make([]string, 0, len(c.Providers))
			for name := range c.Providers {
				names = append(names, name)
			}
			sort.Strings(names)
			if len(names) == 0 {
				fmt.Fprintln(out, "Provider:  (none configured)")
			}
			for _, name := range names {
				p := c.Providers[name]
				state := "enabled"
				switch {
				case !p.IsEnabled():
					state = "disabled"
				case !config.HasCredentials(p):
					state = "missing api key"
				}
				fmt.Fprintf(out, "Provider:  %s type=%s url=%s (%s)\n", name, p.Type, p.URL, state)
			}

			if c.Store.Disabled {
				fmt.Fprintln(out, "Store:     disabled")
			} else {
				fmt.Fprintf(out, "Store:     %s\n", paths.StorePath(c))
			}
			if c.Publish.URL != "" {
				fmt.Fprintf(out, "Publish:   exchange=%s\n", c.Publish.Exchange)
			} else {
				fmt.Fprintln(out, "Publish:   (not configured)")
			}

			if issues := config.Validate(c); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}
