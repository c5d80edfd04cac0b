package capability

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// NativeNotifier displays notifications through the host OS: osascript on
// macOS, notify-send on Linux, a PowerShell toast on Windows. Platforms
// without a known mechanism fall back to the logger.
type NativeNotifier struct {
	logger *slog.Logger
}

// NewNativeNotifier returns a Notifier backed by the host OS.
func NewNativeNotifier(logger *slog.Logger) *NativeNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeNotifier{logger: logger.With("component", "notifier")}
}

func (n *NativeNotifier) Show(ctx context.Context, note Notification) error {
	title := sanitizeNotification(note.Title)
	body := sanitizeNotification(note.Body)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)

	case "linux":
		cmd = exec.CommandContext(ctx, "notify-send", title, body)

	case "windows":
		ps := fmt.Sprintf(`
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null
$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
$textNodes = $template.GetElementsByTagName('text')
$textNodes.Item(0).AppendChild($template.CreateTextNode('%s')) > $null
$textNodes.Item(1).AppendChild($template.CreateTextNode('%s')) > $null
$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier('Veranda').Show($toast)
`, title, body)
		cmd = exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", ps)

	default:
		n.logger.Info("notification", "title", note.Title, "body", note.Body)
		return nil
	}

	if err := cmd.Run(); err != nil {
		// The web side only needs to know the notification was handled;
		// a missing notify-send is not its problem.
		n.logger.Warn("native notification failed", "error", err)
	}
	return nil
}

// sanitizeNotification strips characters that could break shell quoting and
// truncates to a length notification daemons tolerate.
func sanitizeNotification(s string) string {
	s = strings.ReplaceAll(s, "\\", "")
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}
