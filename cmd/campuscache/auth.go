package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tkarema/campuscache/internal/credstore"
	"github.com/tkarema/campuscache/internal/model"
)

// newLoginCmd stores a credential pair obtained from the catalog's auth flow.
// The data layer never performs the interactive login itself.
func newLoginCmd(v *viper.Viper) *cobra.Command {
	var access, refresh string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "store access and refresh tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if access == "" || refresh == "" {
				return errors.New("both --access-token and --refresh-token are required")
			}

			a, err := buildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			toks := model.Tokens{AccessToken: access, RefreshToken: refresh}
			if exp, err := credstore.AccessExpiry(access); err == nil {
				toks.ExpiresAt = exp
			}
			if err := a.creds.Save(toks); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials stored")
			return nil
		},
	}
	cmd.Flags().StringVar(&access, "access-token", "", "bearer access token")
	cmd.Flags().StringVar(&refresh, "refresh-token", "", "refresh token")
	return cmd
}

// newLogoutCmd clears stored credentials.
func newLogoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "clear stored credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.creds.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials cleared")
			return nil
		},
	}
}
