package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatdesk-go/internal/models"
)

var (
	chatsDeleteForce bool
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List and manage chats",
	Long: `List and manage chats.

Subcommands:
  list    List chats (default)
  new     Start a new chat
  delete  Delete a chat and its messages
  clear   Delete all messages of a chat, keeping the chat

Examples:
  chatdesk chats
  chatdesk chats new
  chatdesk chats delete 0kq9x2
  chatdesk chats clear`,
	RunE: runChatsList,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	RunE:  runChatsList,
}

var chatsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new chat and make it active",
	RunE:  runChatsNew,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat with its messages and attachments",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

var chatsClearCmd = &cobra.Command{
	Use:   "clear [chat-id]",
	Short: "Delete all messages of a chat, keeping the chat itself",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChatsClear,
}

func init() {
	chatsDeleteCmd.Flags().BoolVarP(&chatsDeleteForce, "force", "f", false, "skip confirmation")

	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsNewCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
	chatsCmd.AddCommand(chatsClearCmd)
}

func runChatsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	controller, err := newController(ctx)
	if err != nil {
		return err
	}

	snap := controller.Snapshot()
	if len(snap.Chats) == 0 {
		fmt.Println("No chats found.")
		return nil
	}

	fmt.Printf("Chats (%d):\n\n", len(snap.Chats))
	for _, chat := range snap.Chats {
		id := models.MustRecordIDString(chat.ID)
		activeMark := ""
		if id == snap.ActiveChatID {
			activeMark = " [active]"
		}
		fmt.Printf("- %s  %s%s\n", id, chat.Title, activeMark)
		if verbose {
			fmt.Printf("  Updated: %s\n", chat.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
	}

	return nil
}

func runChatsNew(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	controller, err := newController(ctx)
	if err != nil {
		return err
	}
	if err := controller.CreateChat(ctx); err != nil {
		return fmt.Errorf("create chat: %w", err)
	}

	snap := controller.Snapshot()
	fmt.Printf("Created chat %s\n", snap.ActiveChatID)
	return nil
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	chatID := args[0]
	ctx := context.Background()

	controller, err := newController(ctx)
	if err != nil {
		return err
	}

	snap := controller.Snapshot()
	var title string
	for _, chat := range snap.Chats {
		if models.MustRecordIDString(chat.ID) == chatID {
			title = chat.Title
		}
	}
	if title == "" {
		return fmt.Errorf("chat not found: %s", chatID)
	}

	if !chatsDeleteForce {
		fmt.Printf("About to delete: %s (%s)\n", title, chatID)
		fmt.Print("\nContinue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := controller.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	fmt.Printf("Deleted: %s\n", title)
	return nil
}

func runChatsClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	controller, err := newController(ctx)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if err := controller.SelectChat(ctx, args[0]); err != nil {
			return fmt.Errorf("select chat: %w", err)
		}
	}

	if err := controller.ClearActiveChat(ctx); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}

	fmt.Println("Chat cleared.")
	return nil
}
