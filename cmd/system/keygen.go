package system

import (
	"fmt"

	"github.com/spf13/cobra"

	pasetotoken "github.com/Alijeyrad/simorq_booking/pkg/paseto"
)

func NewKeygenCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate PASETO keys for authentication.paseto",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := pasetotoken.GenerateKeys(pasetotoken.Mode(mode))
			if err != nil {
				return err
			}
			s := keys.Strings()
			fmt.Printf("mode: %s\n", s.Mode)
			switch s.Mode {
			case pasetotoken.ModeLocal:
				fmt.Printf("local_key_hex: %s\n", s.SymmetricHex)
			case pasetotoken.ModePublic:
				fmt.Printf("secret_key_hex: %s\n", s.SecretHex)
				fmt.Printf("public_key_hex: %s\n", s.PublicHex)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(pasetotoken.ModeLocal), "local (encrypted) or public (signed)")

	return cmd
}
