package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"gatekeeper/internal/cache"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [channel...]",
	Short: "Stream moderation events and approval requests from Redis",
	Long: `Subscribe to the moderation event and approval request channels and print
every message until interrupted. Requires REDIS_URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context())
		if err != nil {
			return err
		}
		if cache.GetClient() == nil {
			return errors.New("redis is not configured or unreachable")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = rt.notifier.StartSubscriber(ctx, func(channel, payload string) {
			fmt.Printf("[%s] %s\n", channel, payload)
		}, args...)
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
