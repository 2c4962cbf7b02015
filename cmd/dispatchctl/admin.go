package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linesmerrill/dispatch-board/admin"
)

func adminCmd(o *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage robbery types and purge the board",
		Long: `Admin commands ask for the shared admin password unless --password is
given. The password the board checks against is read from ` + envAdminPassword + `,
or ` + envAdminHash + ` for a bcrypt hash.`,
	}
	cmd.PersistentFlags().StringVar(&password, "password", "", "Admin password")

	// unlock opens a session and unlocks its admin gate
	unlock := func(cmd *cobra.Command, write bool) (*session, error) {
		s, err := o.open(cmd, write)
		if err != nil {
			return nil, err
		}
		pw := password
		if !cmd.Flags().Changed("password") {
			if pw, err = s.console.ask(cmd.Context(), "Admin password: "); err != nil {
				s.Close()
				return nil, err
			}
		}
		if err := s.Admin.Unlock(pw); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}

	types := &cobra.Command{
		Use:   "types",
		Short: "List the robbery type catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := unlock(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()
			newRenderer(s.Identity.Theme()).catalog(cmd.OutOrStdout(), s.Catalog.Entries())
			return nil
		},
	}

	types.AddCommand(&cobra.Command{
		Use:   "add NAME COLOR",
		Short: "Add a robbery type",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := unlock(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			name := strings.Join(args[:len(args)-1], " ")
			id, err := s.Admin.AddEntry(cmd.Context(), name, args[len(args)-1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", name, id)
			return nil
		},
	}, &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a robbery type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := unlock(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Admin.RemoveEntry(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	})

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every incident and chat message, from every shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := unlock(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Admin.Purge(cmd.Context())
			if errors.Is(err, admin.ErrPurgeCanceled) {
				fmt.Fprintln(cmd.OutOrStdout(), "Purge canceled")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d records\n", n)
			return nil
		},
	}

	// no session needed, only prints the hash to configure
	hash := &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print the bcrypt hash to set as " + envAdminHash,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := admin.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}

	cmd.AddCommand(types, purge, hash)
	return cmd
}
