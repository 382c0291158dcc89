package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/providers"
	"github.com/spf13/cobra"
)

const listTimeout = 30 * time.Second

func newBotsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "bots",
		Short: "List the bots of all enabled providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadedConfig()
			if err != nil {
				return err
			}
			multi, err := providers.Build(c, log)
			if err != nil {
				return err
			}
			if len(multi.Keys()) == 0 {
				return fmt.Errorf("no usable providers configured in %s", paths.Config)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), listTimeout)
			defer cancel()
			r := multi.Bots(ctx)
			bots, ok := r.Value()
			if !ok {
				return llm.Errors(r.Errors())
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(bots); err != nil {
					return err
				}
			} else {
				printBots(cmd, bots)
			}
			for _, e := range r.Errors() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print bots as JSON")
	return cmd
}

func printBots(cmd *cobra.Command, bots []domain.Bot) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tNAME\tCAPABILITIES")
	for _, b := range bots {
		caps := b.Capabilities.String()
		if caps == "" {
			caps = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID.Provider(), b.Name, caps)
	}
	tw.Flush()
}

// resolveBot finds the bot named by query: a full bot id, "provider/name",
// or a bare name that only one provider serves.
func resolveBot(bots []domain.Bot, query string) (domain.BotID, error) {
	provider, name, qualified := strings.Cut(query, "/")
	if !qualified {
		name = query
	}

	var found []domain.BotID
	for _, b := range bots {
		if string(b.ID) == query {
			return b.ID, nil
		}
		if qualified && b.ID.Provider() != provider {
			continue
		}
		if b.Name == name {
			found = append(found, b.ID)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no bot matches %q", query)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("%q is served by several providers, use provider/%s", query, name)
}
