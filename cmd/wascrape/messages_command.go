package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMessagesCommand(cc *commandContext) *cobra.Command {
	var limit int
	var before int64

	cmd := &cobra.Command{
		Use:   "messages <chat-id>",
		Short: "Show stored messages for a chat, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cc.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			chatID := args[0]
			chat, err := db.GetChat(chatID)
			if err != nil {
				return err
			}
			if chat == nil {
				return fmt.Errorf("unknown chat %q", chatID)
			}

			msgs, err := db.ListMessages(chatID, before, limit)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Printf("no messages stored for %s\n", chat.DisplayName)
				return nil
			}

			rows := make([][]string, 0, len(msgs))
			for _, m := range msgs {
				rows = append(rows, []string{
					formatMillis(m.ExtractedAt),
					m.Direction,
					m.DataType,
					truncate(m.RawPayload, 72),
				})
			}
			fmt.Printf("%s (%s)\n", chat.DisplayName, chat.ChatID)
			fmt.Println(renderTable([]string{"EXTRACTED", "DIR", "TYPE", "CONTENT"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum messages to show")
	cmd.Flags().Int64Var(&before, "before", 0, "only messages extracted before this unix-millis timestamp")
	return cmd
}
