// Package cli implements the creditledger command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "creditledger",
	Short: "Payment ledger and credit scoring for autonomous agents",
	Long: `creditledger records payment outcomes between agent wallets and serves
credit scores derived from each agent's payment history. Score reads on
the HTTP API are gated behind x402 micropayments.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
