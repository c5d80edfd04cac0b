package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verandahq/veranda/internal/token"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Inspect or clear the stored credential",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a valid token is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openTokenStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			tokens := token.NewManager(store)
			tok, err := tokens.GetValidToken(cmd.Context())
			if err != nil {
				return err
			}
			if tok == "" {
				fmt.Println("not authenticated")
				return nil
			}
			info, err := tokens.Info(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println("authenticated")
			if info.ExpiryTime != 0 {
				fmt.Printf("expires at: %d (epoch ms)\n", info.ExpiryTime)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all stored token and user state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, closeStore, err := openTokenStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := token.NewManager(store).Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("cleared")
			return nil
		},
	})

	return cmd
}
