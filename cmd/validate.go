package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/speadcap/internal/config"
	"firestige.xyz/speadcap/pkg/plugin"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without decoding anything.

The source and every reporter are created and initialised, so plugin
options are checked too. Nothing is started.

Examples:
  speadcap validate -f speadcap.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(validateConfigFile, cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if _, err := plugin.NewSource(cfg.Source.Name, cfg.Source.Config); err != nil {
		return err
	}
	for _, r := range cfg.Reporters {
		if _, err := plugin.NewReporter(r.Name, r.Config); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "VALID: version %d, flavour %s, source %q, %d reporter(s)\n",
		cfg.Decoder.Version,
		cfg.Decoder.Flavour,
		cfg.Source.Name,
		len(cfg.Reporters),
	)
	return nil
}
