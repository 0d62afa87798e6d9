// Command voicerelay runs the voice relay server and its diagnostic client.
//
// Usage:
//
//	voicerelay [serve] [--config voicerelay.yaml]
//	voicerelay probe --url ws://localhost:8000/ws/test --text "Merhaba"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voicerelay",
	Short: "Relay spoken audio through transcription, generation and synthesis",
	Long: `voicerelay accepts audio over a WebSocket, transcribes it, generates a
reply and streams the synthesized answer back to the client.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
