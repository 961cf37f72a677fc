package config

const (
	defaultConfigPath    = "~/.config/devopsmirror/config.toml"
	defaultDataDir       = "~/.local/share/devopsmirror"
	defaultSQLiteName    = "devopsmirror.db"
	defaultStorageDriver = DriverSQLite
	defaultBusyTimeoutMS = 5000
	defaultHTTPBind      = "127.0.0.1:8000"
	defaultMaxBodyBytes  = 1 << 20
	defaultReadTimeout   = 15
	defaultWriteTimeout  = 30
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Storage: Storage{
			Driver:        defaultStorageDriver,
			BusyTimeoutMS: defaultBusyTimeoutMS,
		},
		HTTP: HTTP{
			Bind:         defaultHTTPBind,
			MaxBodyBytes: defaultMaxBodyBytes,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
