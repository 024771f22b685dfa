package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newChatsCommand(cc *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List stored chats",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := cc.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			chats, err := db.ListChats(limit, 0)
			if err != nil {
				return err
			}
			if len(chats) == 0 {
				fmt.Println("no chats stored yet")
				return nil
			}

			rows := make([][]string, 0, len(chats))
			for _, c := range chats {
				rows = append(rows, []string{
					c.ChatID,
					c.DisplayName,
					strconv.Itoa(c.UnreadCount),
					formatMillis(c.LastSeenAt),
				})
			}
			fmt.Println(renderTable([]string{"CHAT ID", "NAME", "UNREAD", "LAST SEEN"}, rows, 2))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum chats to list")
	return cmd
}
