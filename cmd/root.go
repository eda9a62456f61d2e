package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dTxn/cmd/doc"
	"github.com/ValentinKolb/dTxn/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:     "dtxn",
		Short:   "optimistic document transactions",
		Version: Version,
		Long: fmt.Sprintf(`dTxn (v%s)

Optimistic read-modify-write transactions on revisioned JSON documents,
against a CouchDB compatible server or an embedded store. Comes with a
small document server backed by an in-memory or redis engine.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dTxn",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dTxn v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(doc.DocCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
