// Command soundclashctl is a small operator CLI for the in-scope parts of
// Room lifecycle: creating a game, kicking a team, and checking liveness,
// each a thin wrapper over the HTTP control surface in internal/httpapi.
// Modeled on Seednode-partybox's cobra/viper command shape (main.go,
// config.go), the closest sibling to this spec's genre in the retrieval
// pack.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(0)
	cobra.CheckErr(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	var serverAddr string

	cmd := &cobra.Command{
		Use:           "soundclashctl",
		Short:         "Operator CLI for the Sound Clash game orchestrator",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "address of the sound clash server (env: SOUNDCLASHCTL_SERVER)")
	_ = cmd.RegisterFlagCompletionFunc("server", cobra.NoFileCompletions)

	cmd.AddCommand(newCreateCmd(&serverAddr))
	cmd.AddCommand(newKickCmd(&serverAddr))
	cmd.AddCommand(newHealthCmd(&serverAddr))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
