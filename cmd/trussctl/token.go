package main

import (
	"fmt"
	"time"

	"Trusslab/internal/auth"
	"Trusslab/internal/config"

	"github.com/spf13/cobra"
)

var tokenOpts struct {
	userID int
	login  string
	ttl    time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API bearer token signed with TOKEN_KEY",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if tokenOpts.userID <= 0 || tokenOpts.login == "" {
			return fmt.Errorf("--user and --login are required")
		}
		tok, err := auth.IssueToken(cfg.TokenKey, tokenOpts.userID, tokenOpts.login, tokenOpts.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().IntVar(&tokenOpts.userID, "user", 0, "user id")
	tokenCmd.Flags().StringVar(&tokenOpts.login, "login", "", "user login")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", auth.SessionTTL, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
