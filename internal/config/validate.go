package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		return errors.New("remote.base_url must be set (or AGRISYNC_REMOTE_URL)")
	}
	return validateHTTPURL("remote.base_url", c.Remote.BaseURL)
}

func (c *Config) validateNetwork() error {
	if err := ensurePositiveMap(map[string]int{
		"network.probe_interval_seconds": c.Network.ProbeIntervalSeconds,
		"network.probe_timeout_seconds":  c.Network.ProbeTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Network.ProbeTimeoutSeconds > c.Network.ProbeIntervalSeconds {
		return errors.New("network.probe_timeout_seconds must not exceed network.probe_interval_seconds")
	}
	if c.Network.ProbeURL == "" {
		return nil
	}
	return validateHTTPURL("network.probe_url", c.Network.ProbeURL)
}

func (c *Config) validateSync() error {
	if c.Sync.DispatchTimeoutSeconds <= 0 {
		return errors.New("sync.dispatch_timeout_seconds must be positive")
	}
	if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
		return fmt.Errorf("sync.schedule %q is invalid: %w", c.Sync.Schedule, err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func validateHTTPURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", key, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
