package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/lkv/cmd/kv"
	"github.com/ValentinKolb/lkv/cmd/serve"
	"github.com/ValentinKolb/lkv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lkv",
		Short: "line protocol key-value server",
		Long: fmt.Sprintf(`lkv (v%s)

A small in-memory key-value server speaking a line based text protocol
(GET <key> / SET <key> <value>) over TCP or Unix sockets.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lkv v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
