package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/myblog/realtime"
)

func init() {
	RootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print record changes as they happen",
	Run:   watch,
}

func watch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("👀 Watching for changes, Ctrl+C to stop")
	err := newClient().Watch(ctx, func(ev realtime.Event) {
		where := ev.Collection
		if ev.ParentID != nil {
			where = fmt.Sprintf("%s of post %d", ev.Collection, *ev.ParentID)
		}
		fmt.Printf("%s  %-15s %s #%d\n", time.Now().Format("15:04:05"), ev.Type, where, ev.ID)
	})
	if err != nil {
		outputErrorAndExit("Error watching: %v", err)
	}
}
