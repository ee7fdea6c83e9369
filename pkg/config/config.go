package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. STUDYFEED_API_BASE_URL.
const EnvPrefix = "STUDYFEED"

var configDir string
var configFilePath string
var credentialsPath string

// getConfigDir returns platform-specific config directory
func getConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		// Windows: %LOCALAPPDATA%\studyfeed
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "studyfeed"), nil
	}

	// Unix-like (macOS, Linux): ~/.config/studyfeed
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "studyfeed"), nil
}

// getSystemConfigPaths returns platform-specific system config paths
func getSystemConfigPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(os.Getenv("ProgramFiles"), "StudyFeed", "config.toml")}
	}

	return []string{
		"/etc/studyfeed/config.toml",
		"/usr/local/etc/studyfeed/config.toml",
	}
}

// Init initializes the configuration
func Init(configPath string) error {
	var err error
	if configPath != "" {
		configDir = filepath.Dir(configPath)
		configFilePath = configPath
	} else {
		configDir, err = getConfigDir()
		if err != nil {
			return err
		}
		configFilePath = filepath.Join(configDir, "config.toml")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return err
	}

	credentialsPath = filepath.Join(configDir, "credentials")

	// A missing .env is the common case.
	_ = godotenv.Load()

	viper.Reset()
	viper.SetConfigType("toml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// System config first, user config overrides it
	for _, sysConfigPath := range getSystemConfigPaths() {
		if _, err := os.Stat(sysConfigPath); err == nil {
			viper.SetConfigFile(sysConfigPath)
			_ = viper.ReadInConfig()
			break
		}
	}

	viper.SetConfigFile(configFilePath)
	if _, err := os.Stat(configFilePath); err == nil {
		if err := viper.MergeInConfig(); err != nil {
			return err
		}
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8787")
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("output.format", "text")

	viper.SetDefault("backend.driver", "rest")
	viper.SetDefault("backend.sqlite_path", filepath.Join(configDir, "studyfeed.db"))

	viper.SetDefault("storage.driver", "rest")
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.bucket", "studyfeed")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.use_ssl", false)
	viper.SetDefault("storage.local_dir", filepath.Join(configDir, "uploads"))

	viper.SetDefault("local.driver", "file")
	viper.SetDefault("local.path", filepath.Join(configDir, "local.json"))

	viper.SetDefault("feed.page_size", 10)
	viper.SetDefault("feed.scroll_threshold", 0.8)
	viper.SetDefault("feed.answer_mode", "local")
	viper.SetDefault("feed.share_base_url", "https://studyfeed.app")

	viper.SetDefault("notifications.page_size", 20)
	viper.SetDefault("messages.window", 20)
	viper.SetDefault("messages.history", 50)

	viper.SetDefault("search.debounce_ms", 500)
	viper.SetDefault("search.recent_max", 10)
	viper.SetDefault("search.result_limit", 5)
	viper.SetDefault("search.demo_fallback", false)

	viper.SetDefault("realtime.url", "ws://localhost:8787/api/v1/ws")
	viper.SetDefault("realtime.heartbeat_ms", 30000)
	viper.SetDefault("realtime.reconnect_max_ms", 30000)

	viper.SetDefault("media.max_bytes", 5*1024*1024)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", filepath.Join(configDir, "studyfeed.log"))
	viper.SetDefault("log.max_size_mb", 10)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 14)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

var pathKeys = map[string]bool{
	"log.file":            true,
	"backend.sqlite_path": true,
	"storage.local_dir":   true,
	"local.path":          true,
}

// GetString returns a string configuration value
func GetString(key string) string {
	value := viper.GetString(key)
	if pathKeys[key] {
		return expandPath(value)
	}
	return value
}

// GetInt returns an int configuration value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetInt64 returns an int64 configuration value
func GetInt64(key string) int64 {
	return viper.GetInt64(key)
}

// GetFloat returns a float configuration value
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetBool returns a bool configuration value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration reads an integer key expressed in milliseconds.
func GetDuration(key string) time.Duration {
	return time.Duration(viper.GetInt64(key)) * time.Millisecond
}

// Set overrides a value for this process only.
func Set(key string, value interface{}) {
	viper.Set(key, value)
}

// SetString sets a string configuration value and persists it
func SetString(key string, value string) error {
	viper.Set(key, value)
	return viper.WriteConfigAs(configFilePath)
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	return configDir
}

// GetConfigFilePath returns the user config file path
func GetConfigFilePath() string {
	return configFilePath
}

// GetCredentialsPath returns the path to the credentials file
func GetCredentialsPath() string {
	return credentialsPath
}
