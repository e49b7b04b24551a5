package cmd

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/cobra"

	codec "github.com/oy3o/vcodec"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Print the integer held in hex VLQ bytes",
		Long: `Print the integer held in hex VLQ bytes. Spaces in the input are
ignored. The input must hold exactly one value.

Example:
  vlq decode ac02        # 300
  vlq decode --signed 41 # -1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}

			limits, err := loadLimits(cmd)
			if err != nil {
				return err
			}

			signed, _ := cmd.Flags().GetBool("signed")
			r := codec.NewBytesReader(data)
			var n *big.Int
			if signed {
				n, err = codec.NewInt(limits).Decode(r)
			} else {
				n, err = codec.NewNat(limits).Decode(r)
			}
			if err != nil {
				return err
			}
			if rest := r.Available(); rest > 0 {
				return fmt.Errorf("%d unread bytes after the value", rest)
			}

			fmt.Fprintln(cmd.OutOrStdout(), n.String())
			return nil
		},
	}
}
