package system

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
	redispkg "github.com/Alijeyrad/simorq_booking/pkg/redis"
)

func NewTokenCommand() *cobra.Command {
	var (
		userID   int64
		roleName string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Open a staff session and print its access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := authorize.RoleFromName(roleName)
			if !ok {
				return fmt.Errorf("unknown role %q", roleName)
			}
			if userID <= 0 {
				return fmt.Errorf("--user is required")
			}

			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}
			mgr, err := pasetotoken.NewFromCentral(cfg.Authentication.Paseto)
			if err != nil {
				return err
			}
			rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
			if err != nil {
				return err
			}
			defer rdb.Close()

			ctx := context.Background()
			sid, err := redispkg.NewSessions(rdb).Create(ctx, userID, mgr.AccessTTL())
			if err != nil {
				return err
			}
			tok, err := mgr.IssueAccess(userID, role.Name(), sid)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Staff user id")
	cmd.Flags().StringVar(&roleName, "role", "manager", "Role carried in the token")

	return cmd
}
