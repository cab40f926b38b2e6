package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatdesk-go/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored data counts for the signed-in user",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	userID, err := currentUserID()
	if err != nil {
		return err
	}

	stats, err := dbClient.QueryUserStats(context.Background(), userID)
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	fmt.Println("Stored data:")
	fmt.Printf("  Chats:       %d\n", stats.Chats)
	fmt.Printf("  Messages:    %d\n", stats.Messages)
	fmt.Printf("  Attachments: %d\n", stats.Attachments)

	if verbose {
		printOpStats(collector.Snapshot())
	}

	return nil
}

func printOpStats(snap metrics.Snapshot) {
	fmt.Println("\nThis invocation:")
	printOp("db queries", snap.DBQuery)
	printOp("uploads", snap.FileUpload)
	printOp("replies", snap.Reply)
}

func printOp(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		return
	}
	fmt.Printf("  %-11s %d (%.1fms avg, %d failed)\n", name+":", op.Count, op.AvgTimeMs, op.Failures)
}
