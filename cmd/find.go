package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/internal/core/decoder"
	"firestige.xyz/speadcap/internal/utils"
	"firestige.xyz/speadcap/plugins/source/words"
)

var errNoMagic = errors.New("no SPEAD magic word found")

var findOpts decodeOptions

var findCmd = &cobra.Command{
	Use:   "find [input]",
	Short: "Locate the first SPEAD magic word in a words dump",
	Long: `Scan a words dump for the first word that decodes as a SPEAD magic
header and print its index and fields. Blank lines are ignored, the dump is
scanned as one stream. --version and --flavour narrow the match when given.

Examples:
  speadcap find dump.txt
  speadcap find --flavour 64,40 - < dump.txt`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := "-"
		if len(args) == 1 {
			input = args[0]
		}
		findOpts.changed = cmd.Flags().Changed
		if err := runFind(cmd.Context(), input, findOpts, cmd.OutOrStdout()); err != nil {
			exitWithError("find failed", err)
		}
	},
}

func init() {
	addDecoderFlags(findCmd.Flags(), &findOpts)
}

func runFind(ctx context.Context, input string, opts decodeOptions, out io.Writer) error {
	rc, err := utils.OpenInput(input)
	if err != nil {
		return err
	}
	defer rc.Close()

	base := words.Base(opts.base)
	if base == "" {
		base = words.BaseAuto
	}
	seqs, err := words.Parse(ctx, rc, base)
	if err != nil {
		return err
	}
	var stream []core.Word
	for _, s := range seqs {
		stream = append(stream, s...)
	}

	var exp decoder.Expectations
	if opts.changed != nil {
		if opts.changed("version") {
			exp.Version = decoder.Ptr(opts.version)
		}
		if opts.changed("flavour") {
			exp.Flavour = decoder.Ptr(opts.flavour)
		}
		if opts.changed("num-headers") {
			exp.NumHeaders = decoder.Ptr(opts.numHeaders)
		}
	}

	idx, m := decoder.FindMagic(stream, exp)
	if idx < 0 {
		return fmt.Errorf("%w in %d words", errNoMagic, len(stream))
	}
	fmt.Fprintf(out, "index %d: 0x%016x version(%d) flavour(%s) num_headers(%d)\n",
		idx, uint64(stream[idx]), m.Version, m.Flavour(), m.NumHeaders)
	return nil
}
