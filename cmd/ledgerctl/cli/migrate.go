package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	run := func(fn func(Migrations) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if deps.Migrations == nil {
				return errors.New("migrate: not configured")
			}
			m, err := deps.Migrations()
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m)
		}
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
	}
	up.RunE = run(func(m Migrations) error {
		if err := m.Up(); err != nil {
			return err
		}
		return printVersion(up, m)
	})
	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping the ledger schema")
	down.RunE = run(func(m Migrations) error {
		if !confirm {
			return errors.New("migrate down drops all ledger tables; pass --yes to continue")
		}
		if err := m.Down(); err != nil {
			return err
		}
		fmt.Fprintln(down.OutOrStdout(), "schema rolled back")
		return nil
	})
	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
	}
	version.RunE = run(func(m Migrations) error {
		return printVersion(version, m)
	})
	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(cmd *cobra.Command, m Migrations) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
