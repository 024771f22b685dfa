package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand(cc *commandContext) *cobra.Command {
	var limit int
	var chatID string

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Full-text search over stored messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cc.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			results, err := db.SearchMessages(args[0], chatID, limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					r.Message.ChatID,
					formatMillis(r.Message.ExtractedAt),
					truncate(r.Snippet, 72),
				})
			}
			fmt.Println(renderTable([]string{"CHAT ID", "EXTRACTED", "MATCH"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum matches to show")
	cmd.Flags().StringVar(&chatID, "chat", "", "restrict the search to one chat")
	return cmd
}
