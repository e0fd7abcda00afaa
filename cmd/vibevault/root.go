package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vibevault/vibevault/internal/app"
	"github.com/vibevault/vibevault/internal/config"
	"github.com/vibevault/vibevault/internal/models"

	_ "modernc.org/sqlite"
)

func newApp(ctx context.Context) (*app.App, error) {
	cfg := config.LoadConfig()
	// the CLI runs without a BLE binding; sync is driven by the
	// desktop/mobile shells
	return app.New(ctx, cfg, nil, nil)
}

// readPassword prompts without echoing.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return pw, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vibevault",
		Short:         "Offline-first credential vault with peer-to-peer sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStatusCmd(), newRegisterCmd(), newListCmd(), newTotpCmd(), newHistoryCmd())
	return root
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether this device is registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			registered, err := a.CheckRegistration(ctx)
			if err != nil {
				return err
			}
			if registered {
				fmt.Println("registered")
			} else {
				fmt.Println("not registered")
			}
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <username>",
		Short: "Create the vault user on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			password, err := readPassword("Master password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Repeat password: ")
			if err != nil {
				return err
			}
			if string(password) != string(confirm) {
				return fmt.Errorf("passwords do not match")
			}

			if err := a.RegisterUser(ctx, args[0], password); err != nil {
				return err
			}
			fmt.Println("registered", args[0])
			return nil
		},
	}
}

// unlock prompts for credentials and returns an open session.
func unlock(ctx context.Context, a *app.App, username string) (string, error) {
	password, err := readPassword("Master password: ")
	if err != nil {
		return "", err
	}
	return a.UnlockVault(ctx, username, password)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <username>",
		Short: "Unlock the vault and list entries of the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := unlock(ctx, a, args[0])
			if err != nil {
				return err
			}
			defer a.LockVault(token)

			views, err := a.GetAllEntries(ctx, token)
			if err != nil {
				return err
			}
			for _, v := range views {
				username := ""
				if v.Payload.Username != nil {
					username = *v.Payload.Username
				}
				fmt.Printf("%d\t%s\t%s\n", v.ID, v.Label, username)
			}
			return nil
		},
	}
}

func newTotpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totp <username> <entry-id>",
		Short: "Print the current TOTP code for an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := unlock(ctx, a, args[0])
			if err != nil {
				return err
			}
			defer a.LockVault(token)

			views, err := a.GetAllEntries(ctx, token)
			if err != nil {
				return err
			}
			var entry *models.EntryView
			for i := range views {
				if fmt.Sprint(views[i].ID) == args[1] {
					entry = &views[i]
					break
				}
			}
			if entry == nil || entry.Payload.TotpSecret == nil {
				return fmt.Errorf("entry %s has no TOTP secret", args[1])
			}

			tok, err := a.GetTotpToken(token, *entry.Payload.TotpSecret)
			if err != nil {
				return err
			}
			fmt.Printf("%s (%ds remaining)\n", tok.Code, tok.SecondsRemaining)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <username>",
		Short: "Show recent sync sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := unlock(ctx, a, args[0])
			if err != nil {
				return err
			}
			defer a.LockVault(token)

			history, err := a.GetSyncHistory(ctx, token)
			if err != nil {
				return err
			}
			for _, h := range history {
				fmt.Printf("%s\t%s\t%s\tsent=%d recv=%d\n",
					h.StartedAt, h.DeviceID, h.Status, h.EntriesSent, h.EntriesReceived)
			}
			return nil
		},
	}
}
