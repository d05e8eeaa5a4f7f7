package system

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

func NewGenDocsCommand() *cobra.Command {
	var outDir, format string

	cmd := &cobra.Command{
		Use:   "gendocs",
		Short: "Generate CLI reference docs",
		Long:  "Writes one file per booking command to --outdir, as markdown, man pages or yaml.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}

			root := cmd.Root()
			root.DisableAutoGenTag = true

			var err error
			switch format {
			case "markdown", "md":
				err = doc.GenMarkdownTree(root, outDir)
			case "man":
				err = doc.GenManTree(root, &doc.GenManHeader{Title: "BOOKING", Section: "1"}, outDir)
			case "yaml":
				err = doc.GenYamlTree(root, outDir)
			default:
				return fmt.Errorf("unknown format %q (use markdown|man|yaml)", format)
			}
			if err != nil {
				return fmt.Errorf("generate %s docs: %w", format, err)
			}

			cmd.Printf("%s docs written to %s\n", format, outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "outdir", "docs/cli", "output directory")
	cmd.Flags().StringVar(&format, "format", "markdown", "markdown, man or yaml")
	return cmd
}
