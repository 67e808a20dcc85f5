package kv

import (
	"github.com/ValentinKolb/lkv/cmd/util"
	"github.com/ValentinKolb/lkv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	lineStore *client.LineStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Add connection flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient connects the line store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	// Create the KV store client
	lineStore, err = client.NewLineStore(*util.GetClientConfig(), t)
	return err
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	if lineStore == nil {
		return nil
	}
	return lineStore.Close()
}
