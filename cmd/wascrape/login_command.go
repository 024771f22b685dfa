package main

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"wascrape/internal/lock"
	"wascrape/internal/platform/whatsapp"
	"wascrape/internal/profile"
)

func newLoginCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Link this profile by scanning a QR code with your phone",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := cc.profileName()
			if err != nil {
				return err
			}
			if err := profile.EnsureDir(name); err != nil {
				return err
			}
			lk, err := lock.Acquire(profile.Dir(name))
			if err != nil {
				return err
			}
			defer func() { _ = lk.Release() }()

			cfg := cc.loadConfig()
			client, err := whatsapp.New(whatsapp.Options{
				UserDataDir: profile.BrowserDataDir(name),
				Headless:    cfg.Browser.Headless,
				NavTimeout:  cfg.Browser.NavTimeout(),
			})
			if err != nil {
				return err
			}
			defer client.Close()

			ctx := cmd.Context()
			if err := client.Open(ctx); err != nil {
				return err
			}
			loggedIn, err := client.IsLoggedIn(ctx)
			if err != nil {
				return err
			}
			if loggedIn {
				fmt.Printf("profile %q is already logged in\n", name)
				return nil
			}

			fmt.Println("Scan the QR code with WhatsApp on your phone:")
			err = client.WaitLoggedIn(ctx, func(code string) {
				q, qerr := qrcode.New(code, qrcode.Medium)
				if qerr != nil {
					fmt.Printf("(could not render QR: %v)\n", qerr)
					return
				}
				fmt.Print(q.ToSmallString(false))
			})
			if err != nil {
				return err
			}
			fmt.Printf("profile %q logged in\n", name)
			return nil
		},
	}
}
