package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "enercast",
	Short: "ENERCAST - walk-forward backtesting for energy price forecasts",
	Long: `ENERCAST evaluates price forecasting models on historical energy
commodity series. Each walk-forward window trains the model on past prices,
turns its predictions into trading signals and simulates the trades with
commission and slippage.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
