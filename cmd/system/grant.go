package system

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_booking/config"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/database"
)

func NewGrantCommand() *cobra.Command {
	var (
		userID     int64
		roleName   string
		providerID int64
		revoke     bool
	)

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant or revoke a staff role",
		Example: `  booking system grant --user 12 --role manager
  booking system grant --user 40 --role provider --provider 7
  booking system grant --user 12 --role manager --revoke`,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := authorize.RoleFromName(roleName)
			if !ok {
				return fmt.Errorf("unknown role %q", roleName)
			}
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}
			domain := authorize.DomainSys
			if providerID > 0 {
				domain = authorize.ProviderDomain(providerID)
			}

			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}
			auth, cleanup, err := newAuthorization(cfg)
			if err != nil {
				return err
			}
			defer cleanup(context.Background())

			ctx := context.Background()
			if revoke {
				if err := authorize.RevokeRole(ctx, auth, userID, role, domain); err != nil {
					return err
				}
				fmt.Printf("Revoked %s from user %d in %s.\n", role.Name(), userID, domain)
				return nil
			}
			if err := authorize.AssignRole(ctx, auth, userID, role, domain); err != nil {
				return err
			}
			fmt.Printf("Granted %s to user %d in %s.\n", role.Name(), userID, domain)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Staff user id")
	cmd.Flags().StringVar(&roleName, "role", "", "Role name: admin, manager, provider or customer")
	cmd.Flags().Int64Var(&providerID, "provider", 0, "Limit the role to one provider")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Revoke the role instead of granting it")

	return cmd
}

// newAuthorization opens the policy store without the change watcher.
func newAuthorization(cfg *config.Config) (authorize.IAuthorization, authorize.CleanupFunc, error) {
	acfg := authorize.FromCentralConfig(cfg.Authorization)
	acfg.PolicySync = false
	enforcer, cleanup, err := authorize.NewEnforcer(acfg, database.NewDSN(cfg.CasbinDatabase))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	auth, err := authorize.New(enforcer, acfg)
	if err != nil {
		cleanup(context.Background())
		return nil, nil, fmt.Errorf("failed to create authorization: %w", err)
	}
	return auth, cleanup, nil
}
