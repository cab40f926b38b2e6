package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatdesk-go/internal/models"
	"github.com/raphaelgruber/chatdesk-go/internal/session"
)

var (
	sendFiles []string
	sendChat  string
)

var sendCmd = &cobra.Command{
	Use:   "send <message...>",
	Short: "Send a message and print the assistant's reply",
	Long: `Send a message to the active chat and wait for the assistant's reply.

Attachments are uploaded before the reply; a file that fails to upload
is skipped, the message still goes through.

Examples:
  chatdesk send "hello there"
  chatdesk send "have a look at this" --file report.pdf --file chart.png
  chatdesk send "continuing an older thread" --chat 0kq9x2`,
	Args: cobra.ArbitraryArgs,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringSliceVarP(&sendFiles, "file", "F", nil, "attach a file (repeatable)")
	sendCmd.Flags().StringVarP(&sendChat, "chat", "c", "", "target chat id (default: active chat)")
}

func runSend(cmd *cobra.Command, args []string) error {
	content := strings.TrimSpace(strings.Join(args, " "))
	if content == "" && len(sendFiles) == 0 {
		return fmt.Errorf("nothing to send: pass a message or --file")
	}

	files, err := readFiles(sendFiles)
	if err != nil {
		return err
	}

	ctx := context.Background()
	controller, err := newController(ctx)
	if err != nil {
		return err
	}
	if sendChat != "" {
		if err := controller.SelectChat(ctx, sendChat); err != nil {
			return fmt.Errorf("select chat: %w", err)
		}
	}

	if err := controller.SendMessage(ctx, content, files); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	controller.Wait()

	snap := controller.Snapshot()
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Role == models.RoleAssistant {
			fmt.Println(snap.Messages[i].Content)
			break
		}
	}

	return nil
}

// readFiles stages local files for upload. The MIME type is derived
// from the extension, matching how the reply describes attachments.
func readFiles(paths []string) ([]session.File, error) {
	var files []session.File
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", path, err)
		}

		fileType := mime.TypeByExtension(filepath.Ext(path))
		if fileType == "" {
			fileType = "application/octet-stream"
		}

		files = append(files, session.File{
			Name: filepath.Base(path),
			Type: fileType,
			Data: data,
		})
	}
	return files, nil
}
