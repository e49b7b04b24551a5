// Package cmd implements the vlq command line tool, which converts
// integers to and from their VLQ wire form.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	codec "github.com/oy3o/vcodec"
)

// NewRootCmd builds the command tree. Every call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vlq",
		Short: "Encode and decode variable-length integers",
		Long: `vlq converts integers of any size to and from the VLQ wire form
used for Nat and Int values.

Unsigned values use 7-bit groups, least significant first, with 0x80 on
every byte but the last. With --signed, bit 6 of the last byte is the sign.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return fmt.Errorf("failed to create logger: %w", err)
				}
				codec.SetLogger(l)
			}
			return nil
		},
	}

	root.PersistentFlags().BoolP("signed", "s", false, "Use the signed (Int) encoding")
	root.PersistentFlags().StringP("limits", "l", "", "YAML file with decode limits")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newEncodeCmd(), newDecodeCmd())
	return root
}

// Execute runs the tool and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadLimits returns the limits named by --limits, or the defaults.
func loadLimits(cmd *cobra.Command) (codec.Limits, error) {
	path, _ := cmd.Flags().GetString("limits")
	if path == "" {
		return codec.DefaultLimits(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return codec.Limits{}, fmt.Errorf("failed to open limits: %w", err)
	}
	defer f.Close()
	return codec.LoadLimits(f)
}
