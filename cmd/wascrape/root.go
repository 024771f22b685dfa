package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wascrape/internal/config"
	"wascrape/internal/profile"
	"wascrape/internal/store"
)

// commandContext carries the flags and lazily-opened resources shared
// by every subcommand.
type commandContext struct {
	profileFlag *string
}

func (cc *commandContext) profileName() (string, error) {
	name := profile.Resolve(*cc.profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func (cc *commandContext) loadConfig() *config.Config {
	return config.LoadOrDefault(profile.ConfigPath())
}

// openStore opens the profile database read-ready (migrated). Callers
// must Close the returned handle.
func (cc *commandContext) openStore() (*store.DB, error) {
	name, err := cc.profileName()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(profile.DBPath(name))
	if err != nil {
		return nil, fmt.Errorf("open store for profile %q: %w", name, err)
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newRootCommand() *cobra.Command {
	var profileFlag string

	cc := &commandContext{profileFlag: &profileFlag}

	rootCmd := &cobra.Command{
		Use:           "wascrape",
		Short:         "WhatsApp Web chat collector",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "profile name (overrides config default)")

	rootCmd.AddCommand(newLoginCommand(cc))
	rootCmd.AddCommand(newRunCommand(cc))
	rootCmd.AddCommand(newChatsCommand(cc))
	rootCmd.AddCommand(newMessagesCommand(cc))
	rootCmd.AddCommand(newSearchCommand(cc))

	return rootCmd
}
