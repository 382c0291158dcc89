package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/store"
	"github.com/spf13/cobra"
)

func newChatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage chats kept in the local store",
	}

	cmd.AddCommand(newChatsListCmd())
	cmd.AddCommand(newChatsShowCmd())
	cmd.AddCommand(newChatsRemoveCmd())
	return cmd
}

func openStore() (*store.DB, error) {
	c, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	if c.Store.Disabled {
		return nil, fmt.Errorf("the local store is disabled")
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	return store.Open(paths.StorePath(c), log)
}

func newChatsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored chats, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			chats, err := db.ListChats(cmd.Context())
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No chats stored.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED\tBOT\tTITLE")
			for _, c := range chats {
				bot := "-"
				if c.BotID != "" {
					bot = c.BotID.Provider() + "/" + domain.BotID(c.BotID.ID()).ID()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.UpdatedAt.Local().Format(time.DateTime), bot, c.Title)
			}
			return tw.Flush()
		},
	}
}

func newChatsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			c, err := db.GetChat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			msgs, err := db.Messages(cmd.Context(), c.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", c.Title)
			for _, m := range msgs {
				fmt.Fprintf(out, "\n[%s] %s\n", m.From.Kind, m.Content.Text)
				for _, a := range m.Content.Attachments {
					fmt.Fprintf(out, "  attachment %s (%s)\n", a.Name, a.ContentType)
				}
			}
			return nil
		},
	}
}

func newChatsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			// Attachments live outside the chat rows.
			msgs, err := db.Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := db.DeleteChat(cmd.Context(), args[0]); err != nil {
				return err
			}
			blobs := store.NewBlobPersister(db)
			for _, m := range msgs {
				for _, a := range m.Content.Attachments {
					if !a.HasPersistenceKey() {
						continue
					}
					if err := blobs.Delete(cmd.Context(), a.PersistenceKey); err != nil {
						log.Warn().Err(err).Str("key", a.PersistenceKey).Msg("deleting attachment")
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted chat %s\n", args[0])
			return nil
		},
	}
}
