package preflight

import (
	"context"
	"strings"

	"agrisync/internal/config"
)

// CheckRemoteFromConfig evaluates the inference service from config and connectivity.
func CheckRemoteFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: remoteCheckName, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Remote.BaseURL) == "" {
		return Result{Name: remoteCheckName, Detail: "Missing URL"}
	}
	return CheckRemote(ctx, cfg.Remote.BaseURL, cfg.Remote.APIToken)
}

// CheckNotificationsFromConfig reports whether push notifications are configured.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	var events []string
	if cfg.Notifications.SyncComplete {
		events = append(events, "sync complete")
	}
	if cfg.Notifications.ItemFailed {
		events = append(events, "item failed")
	}
	if len(events) == 0 {
		return Result{Name: name, Passed: true, Detail: topic + " (no events enabled)"}
	}
	return Result{Name: name, Passed: true, Detail: topic + " (" + strings.Join(events, ", ") + ")"}
}
