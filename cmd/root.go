package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/simorq_booking/cmd/http"
	notifycmd "github.com/Alijeyrad/simorq_booking/cmd/notify"
	systemcmd "github.com/Alijeyrad/simorq_booking/cmd/system"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "booking",
		Short: "Appointment and event booking server",
		Long: `booking serves the appointment and event booking API: free time slots,
reservations, recurring events, webhooks and customer notifications.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "config.yaml", "config file path")

	root.AddCommand(
		systemcmd.NewSystemCommand(),
		httpcmd.NewHTTPCommand(),
		notifycmd.NewNotifyCommand(),
	)
	return root
}

func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
