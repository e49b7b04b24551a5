package cmd

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	codec "github.com/oy3o/vcodec"
)

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <integer>",
		Short: "Print the VLQ bytes of an integer as hex",
		Long: `Print the VLQ bytes of an integer as hex.

The integer may be decimal or carry a 0x, 0o or 0b prefix. Put negative
values after -- so they are not read as flags.

Example:
  vlq encode 300          # ac02
  vlq encode --signed -- -1  # 41`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, ok := new(big.Int).SetString(args[0], 0)
			if !ok {
				return fmt.Errorf("not an integer: %q", args[0])
			}

			signed, _ := cmd.Flags().GetBool("signed")
			var (
				out []byte
				err error
			)
			if signed {
				out, err = codec.Marshal[*big.Int](codec.Int, n)
			} else {
				out, err = codec.Marshal[*big.Int](codec.Nat, n)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(out))
			return nil
		},
	}
}
