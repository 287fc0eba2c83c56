// Package cli implements the ledgerctl operator commands.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
)

// Migrations applies and inspects the schema.
type Migrations interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

// Jobs triggers and inspects background jobs.
type Jobs interface {
	Trigger(ctx context.Context, name, since string) (string, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	Close() error
}

// ClientCreator registers API clients.
type ClientCreator interface {
	CreateClient(ctx context.Context, in auth.CreateClientInput) (auth.Client, string, error)
}

// Deps opens the resources a command needs. Each opener is called lazily so
// a command only connects to what it uses.
type Deps struct {
	Migrations func() (Migrations, error)
	Jobs       func() (Jobs, error)
	Clients    func(ctx context.Context) (ClientCreator, func(), error)
}

// NewRootCommand assembles the ledgerctl command tree.
func NewRootCommand(deps Deps, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tooling for the odyssey ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if out != nil {
		root.SetOut(out)
		root.SetErr(out)
	}
	root.AddCommand(newMigrateCommand(deps))
	root.AddCommand(newJobsCommand(deps))
	root.AddCommand(newClientCommand(deps))
	return root
}
