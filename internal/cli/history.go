package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyDays int
	alertsLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history [watch-id]",
	Short: "Show the recorded price history of a watch",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show recently fired price alerts",
	Args:  cobra.NoArgs,
	RunE:  runAlerts,
}

func init() {
	historyCmd.Flags().IntVar(&historyDays, "days", 7, "history window in days")
	alertsCmd.Flags().IntVarP(&alertsLimit, "limit", "n", 20, "maximum number of alerts")
	rootCmd.AddCommand(historyCmd, alertsCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid watch id %q", args[0])
	}

	ctx := context.Background()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	history, err := app.tracker.PriceHistory(id, historyDays)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(history) == 0 {
		cmd.Println("No observations recorded.")
		return nil
	}

	for _, o := range history {
		cmd.Printf("  %s  %d원\n", o.ObservedAt.Local().Format(time.DateTime), o.Price)
	}
	return nil
}

func runAlerts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	alerts, err := app.tracker.RecentAlerts(alertsLimit)
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	if len(alerts) == 0 {
		cmd.Println("No alerts fired.")
		return nil
	}

	for _, a := range alerts {
		cmd.Printf("  %s  [%s] watch %d: %d원 -> %d원  %s\n",
			a.CreatedAt.Local().Format(time.DateTime),
			a.Kind, a.WatchID, a.OldPrice, a.NewPrice, a.ItemName)
	}
	return nil
}
