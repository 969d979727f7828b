// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "speadcap",
	Short: "speadcap - SPEAD packet decoder",
	Long: `speadcap decodes SPEAD packets from 64-bit word dumps or packet captures.

Every word sequence is checked against the expected protocol version and
flavour, its item pointers are collected and the payload is validated against
the length header. Decoded packets are printed or sent to Kafka or NATS.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(validateCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
