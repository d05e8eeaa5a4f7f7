package system

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/simorq_booking/pkg/database"
)

func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the booking and policy databases",
		Long:  `Create database.dbname and casbin_database.dbname if missing. Run "system migrate" afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readConfig(cmd)
			if err != nil {
				return err
			}

			created, err := database.InitializeDatabases(context.Background(), cfg)
			for _, name := range created {
				cmd.Printf("created database %s\n", name)
			}
			if err != nil {
				return fmt.Errorf("initialize databases: %w", err)
			}
			if len(created) == 0 {
				cmd.Println("databases already exist")
			}
			return nil
		},
	}
}
