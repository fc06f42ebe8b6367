package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pkgcfg "github.com/Skotchmaster/cactus_shop/pkg/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var envFile string

var rootCmd = &cobra.Command{
	Use:   "cactusshop",
	Short: "Cactus and succulent shop: catalog, carts and customers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return pkgcfg.LoadDotEnv(envFile)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file to load before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}
