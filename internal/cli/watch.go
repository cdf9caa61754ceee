package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/minlano/ssg-price-tracker/internal/crawler"

	"github.com/spf13/cobra"
)

var (
	watchTarget int64
	watchUser   string
	watchName   string
)

var watchCmd = &cobra.Command{
	Use:   "watch [item-url]",
	Short: "Track an item for price drops",
	Long: `Registers an item URL for tracking. Without --user the watch is
stored unclaimed and stays inactive until someone claims it. A target price
of 0 alerts only on new minimums.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch [watch-id]",
	Short: "Stop tracking a watch",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnwatch,
}

var claimCmd = &cobra.Command{
	Use:   "claim [user-ref]",
	Short: "Claim all unclaimed watches for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runClaim,
}

func init() {
	watchCmd.Flags().Int64Var(&watchTarget, "target", 0, "target price in KRW")
	watchCmd.Flags().StringVar(&watchUser, "user", "", "user reference to claim the watch for")
	watchCmd.Flags().StringVar(&watchName, "name", "", "display name for the item")
	rootCmd.AddCommand(watchCmd, unwatchCmd, claimCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.tracker.Watch(crawler.Item{
		Name: watchName,
		URL:  args[0],
	}, watchTarget, watchUser)
	if err != nil {
		return fmt.Errorf("failed to add watch: %w", err)
	}

	if watchUser == "" {
		cmd.Printf("Watch %d added (unclaimed); run 'claim <user-ref>' to activate it.\n", id)
	} else {
		cmd.Printf("Watch %d added for %s.\n", id, watchUser)
	}
	return nil
}

func runUnwatch(cmd *cobra.Command, args []string) error {
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

	if err := app.tracker.Unwatch(id); err != nil {
		return fmt.Errorf("failed to remove watch: %w", err)
	}
	cmd.Printf("Watch %d deactivated.\n", id)
	return nil
}

func runClaim(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.tracker.ClaimWatches(args[0])
	if err != nil {
		return fmt.Errorf("failed to claim watches: %w", err)
	}
	cmd.Printf("Claimed %d watch(es) for %s.\n", n, args[0])
	return nil
}
