package cmd

import (
	"fmt"
	"strings"
	"time"

	"fabdrop/internal/auth"
	"fabdrop/internal/ui"

	"github.com/spf13/cobra"
)

var (
	authToken string
	authTTL   time.Duration
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored access tokens",
	Long: `Store tokens for the keyring provider. RESOURCE is a short name (fabric,
powerbi, devops, storage) or a full resource URL. Tokens go to the system
keyring, or to an encrypted file under ~/.fabdrop/credentials when no keyring
is available.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set RESOURCE",
	Short: "Store a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := auth.NewStore("")
		if err != nil {
			return err
		}
		token := authToken
		if token == "" {
			token, err = ui.Password("Token for "+auth.ResourceName(auth.ResolveResource(args[0]))+":", "")
			if err != nil {
				return err
			}
		}
		if err := store.Set(args[0], strings.TrimSpace(token), authTTL); err != nil {
			return err
		}
		current.ui.Success(fmt.Sprintf("token for %s stored (%s)", auth.ResourceName(auth.ResolveResource(args[0])), backend(store)))
		return nil
	},
}

var authGetCmd = &cobra.Command{
	Use:   "get RESOURCE",
	Short: "Show a stored token, masked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := auth.NewStore("")
		if err != nil {
			return err
		}
		cred, err := store.Get(args[0])
		if err != nil {
			return err
		}
		expires := "unknown"
		if !cred.ExpiresOn.IsZero() {
			expires = cred.ExpiresOn.Local().Format(time.RFC3339)
			if cred.Expired(time.Now()) {
				expires += " (expired)"
			}
		}
		ui.KeyValueTable(cmd.OutOrStdout(), [][2]string{
			{"Resource", cred.Resource},
			{"Token", mask(cred.Token)},
			{"Stored", cred.StoredAt.Local().Format(time.RFC3339)},
			{"Expires", expires},
			{"Backend", backend(store)},
		})
		return nil
	},
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete RESOURCE",
	Short: "Remove a stored token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := auth.NewStore("")
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		current.ui.Success("token for " + auth.ResourceName(auth.ResolveResource(args[0])) + " deleted")
		return nil
	},
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := auth.NewStore("")
		if err != nil {
			return err
		}
		names, err := store.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			current.ui.Info("no stored tokens")
			return nil
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func backend(store *auth.Store) string {
	if store.UsesKeyring() {
		return "system keyring"
	}
	return "encrypted file"
}

// mask keeps the first and last four characters of a token.
func mask(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authGetCmd, authDeleteCmd, authListCmd)
	authSetCmd.Flags().StringVar(&authToken, "token", "", "token value (prompted when empty)")
	authSetCmd.Flags().DurationVar(&authTTL, "ttl", time.Hour, "token lifetime, 0 for no expiry")
}
