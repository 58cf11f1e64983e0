package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"excelsior/cmd/internal/passphrase"
)

const defaultRPCEndpoint = "http://127.0.0.1:8645/rpc"

// passSource resolves keystore passphrases; tests replace it.
var passSource = func() (string, error) {
	return passphrase.NewSource(passphrase.DefaultEnv, "").Get()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "excelsior-cli [command] [flags]",
		Short:         "Operator tooling for the excelsior ledger",
		Long:          `excelsior-cli manages operator keys, issues RPC bearer tokens, builds distribution trees and calls a running node.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeygenCmd(), newTokenCmd(), newMerkleCmd(), newCallCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rpcEndpointDefault() string {
	if env := strings.TrimSpace(os.Getenv("EXCELSIOR_RPC_URL")); env != "" {
		return env
	}
	return defaultRPCEndpoint
}
