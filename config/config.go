package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		// a local .env is optional; real deployments set the environment
		_ = godotenv.Load()

		viper.AutomaticEnv()

		viper.BindEnv("port", "PORT")
		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("data_dir", "DATA_DIR")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("store_backend", "STORE_BACKEND")
		viper.BindEnv("firebase_credentials", "FIREBASE_CREDENTIALS")
		viper.BindEnv("app_id", "APP_ID")
		viper.BindEnv("default_origin", "DEFAULT_ORIGIN")
		viper.BindEnv("check_interval_minutes", "CHECK_INTERVAL_MINUTES")
		viper.BindEnv("fallback_days", "FALLBACK_DAYS")
		viper.BindEnv("history_retention_days", "HISTORY_RETENTION_DAYS")
		viper.BindEnv("search_base_url", "SEARCH_BASE_URL")
		viper.BindEnv("search_cache_ttl_minutes", "SEARCH_CACHE_TTL_MINUTES")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("telegram_chat_id", "TELEGRAM_CHAT_ID")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "TRACKER_LANG")

		viper.SetDefault("port", 8080)
		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("db_path", "data/travelfolio.db")
		viper.SetDefault("store_backend", "")
		viper.SetDefault("app_id", "travelfolio-3d-001")
		viper.SetDefault("default_origin", "FRA")
		viper.SetDefault("check_interval_minutes", 60)
		viper.SetDefault("fallback_days", 30)
		viper.SetDefault("history_retention_days", 365)
		viper.SetDefault("search_cache_ttl_minutes", 5)
		viper.SetDefault("debug", false)
		// empty means detect from the environment locale
		viper.SetDefault("lang", "")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetInt64(key string) int64 {
	InitConfig()
	return viper.GetInt64(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}
