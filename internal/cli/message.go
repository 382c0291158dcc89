package cli

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/soyeahso/botkit/internal/chat"
	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/llm"
	"github.com/soyeahso/botkit/internal/providers"
	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	var (
		botQuery string
		chatID   string
		attach   []string
		noStore  bool
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a message to a bot and print the streamed reply",
		Long: "Send appends the message to a chat and streams the reply of the selected bot.\n" +
			"Without --chat a new chat is started; with it, the stored chat is continued.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadedConfig()
			if err != nil {
				return err
			}

			content := domain.MessageContent{Text: strings.Join(args, " ")}
			for _, path := range attach {
				a, err := readAttachment(path)
				if err != nil {
					return err
				}
				content.Attachments = append(content.Attachments, a)
			}

			multi, err := providers.Build(c, log)
			if err != nil {
				return err
			}
			if len(multi.Keys()) == 0 {
				return fmt.Errorf("no usable providers configured in %s", paths.Config)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openSession(ctx, c, multi, sessionOptions{
				chatID:  chatID,
				noStore: noStore,
				out:     cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			defer s.Close()

			return converse(ctx, cmd, s, botQuery, content)
		},
	}

	cmd.Flags().StringVar(&botQuery, "bot", "", "bot to talk to: name, provider/name or full id (default: stored or first bot)")
	cmd.Flags().StringVar(&chatID, "chat", "", "chat to continue (default: a new chat)")
	cmd.Flags().StringArrayVar(&attach, "attach", nil, "file to attach (repeatable)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not replicate the chat to the local store")

	return cmd
}

// converse selects the bot, appends the user message and streams the reply.
func converse(ctx context.Context, cmd *cobra.Command, s *session, botQuery string, content domain.MessageContent) error {
	if botQuery == "" {
		s.ctl.AppendPlugin(chat.NewDefaultBotSelector(s.ctl))
	}
	loaded := s.ctl.Load(ctx)
	for _, e := range loaded.Errors() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", e)
	}

	if botQuery != "" {
		id, err := resolveBot(s.ctl.State().Bots, botQuery)
		if err != nil {
			return err
		}
		s.ctl.DispatchMutation(chat.SetBotID(id))
	}

	st := s.ctl.State()
	bot, ok := st.SelectedBot()
	if !ok {
		if st.BotID != "" {
			return fmt.Errorf("bot %s of chat %s is not available, choose one with --bot", st.BotID, s.chatID)
		}
		return fmt.Errorf("no bots available")
	}
	if len(content.Attachments) > 0 && !bot.Capabilities.SupportsAttachments() {
		return fmt.Errorf("%s does not accept attachments", bot.Name)
	}
	log.Info().Str("chat", s.chatID).Str("bot", bot.ID.String()).Msg("sending message")
	fmt.Fprintf(cmd.ErrOrStderr(), "[chat %s, %s]\n", s.chatID, bot.Name)

	s.ctl.DispatchMutation(chat.PushMessage(domain.NewMessage(domain.FromUser, content)))
	r := s.ctl.Send(ctx, nil)
	if r.HasErrors() {
		return llm.Errors(r.Errors())
	}
	return nil
}

// readAttachment loads a file as an attachment. The content type comes from
// the extension, or from sniffing the content.
func readAttachment(path string) (domain.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("reading attachment: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return domain.NewAttachment(filepath.Base(path), ct, data), nil
}
