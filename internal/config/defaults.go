package config

const (
	defaultConfigPath             = "~/.config/agrisync/config.toml"
	defaultDataDir                = "~/.local/share/agrisync"
	defaultLogDir                 = "~/.local/share/agrisync/logs"
	defaultAPIBind                = "127.0.0.1:7615"
	defaultRemoteBaseURL          = "http://127.0.0.1:8000"
	defaultUserAgent              = "agrisync/dev"
	defaultProbeIntervalSeconds   = 15
	defaultProbeTimeoutSeconds    = 5
	defaultSyncSchedule           = "@every 5m"
	defaultDispatchTimeoutSeconds = 30
	defaultNotifyRequestTimeout   = 10
	defaultNotifyDedupWindow      = 600
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Remote: Remote{
			BaseURL:   defaultRemoteBaseURL,
			UserAgent: defaultUserAgent,
		},
		Network: Network{
			ProbeIntervalSeconds: defaultProbeIntervalSeconds,
			ProbeTimeoutSeconds:  defaultProbeTimeoutSeconds,
			NetlinkEnabled:       true,
		},
		Sync: Sync{
			Schedule:               defaultSyncSchedule,
			DispatchTimeoutSeconds: defaultDispatchTimeoutSeconds,
			SyncOnStart:            true,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			SyncComplete:       true,
			ItemFailed:         true,
			DedupWindowSeconds: defaultNotifyDedupWindow,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
