// Package cli wires the glidedeck commands: running and stopping the
// desktop receiver, printing the pairing payload, and a terminal client
// for smoke-testing a receiver without a phone.
package cli

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/glidedeck/glidedeck/utils"
)

const version = "dev"

var verbose bool

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "glidedeck",
	Short: "Remote trackpad and keyboard receiver for the desktop",
	Long:  `Turns a phone into a wireless trackpad, keyboard and clipboard for this machine.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func initConfig() {
	utils.SetVerbose(verbose)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command
func Execute() error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	return rootCmd.Execute()
}

// printJson is a helper function to print JSON responses
func printJson(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(jsonData))
}
