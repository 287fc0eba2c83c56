package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newClientCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage API clients",
	}
	var (
		name       string
		entityType string
		entityID   string
		perms      []string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register an API client and print its bearer token once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Clients == nil {
				return errors.New("client: not configured")
			}
			scope, err := shared.ParseScope(entityType, entityID)
			if err != nil {
				return err
			}
			creator, release, err := deps.Clients(cmd.Context())
			if err != nil {
				return err
			}
			if release != nil {
				defer release()
			}
			client, token, err := creator.CreateClient(cmd.Context(), auth.CreateClientInput{
				Name:        name,
				Scope:       scope,
				Permissions: perms,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client %d %q scope=%s\n", client.ID, client.Name, client.Scope)
			fmt.Fprintf(out, "token: %s\n", token)
			fmt.Fprintln(out, "store the token now; it cannot be shown again")
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "client display name")
	create.Flags().StringVar(&entityType, "entity-type", string(shared.EntityAdmin), "ADMIN or VENDOR")
	create.Flags().StringVar(&entityID, "entity-id", "", "vendor id when entity-type is VENDOR")
	create.Flags().StringSliceVar(&perms, "perm", nil, "permission to grant (repeatable)")
	_ = create.MarkFlagRequired("name")
	cmd.AddCommand(create)
	return cmd
}
