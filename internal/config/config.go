package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration. It is built once by Load at
// process start and handed to each component.
type Config struct {
	Stage                 string
	Env                   string
	LogGroup              string
	NotificationEmails    []string
	NotificationTableName string
	MutedMode             bool
	MaxDailyWarns         int
	Logging               struct {
		Dir   string
		Level string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Kafka struct {
		Brokers string
		Topic   string
		GroupID string
	}
	Email struct {
		Provider      string
		Region        string
		SenderARN     string
		ConfigSetName string
		FromAddress   string
		ResendAPIKey  string
	}
	Telegram struct {
		BotToken  string
		ChatIDs   []int64
		RateLimit int
	}
	API struct {
		Port     string
		BasePath string
	}
	Digest struct {
		Hour int
	}
}

const envPrefix = "SIGEVENT"

// Load reads .env (outside prod), environment variables prefixed with
// SIGEVENT_ and an optional YAML file named by SIGEVENT_CONFIG.
func Load() (Config, error) {
	env := os.Getenv(envPrefix + "_ENV")
	if env == "" {
		env = "prod"
	}
	if env != "prod" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Env = env
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("stage", "dev")
	v.SetDefault("muted_mode", false)
	v.SetDefault("max_daily_warns", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("kafka_topic", "sigevent")
	v.SetDefault("kafka_group_id", "sigevent-handler")
	v.SetDefault("email_provider", "ses")
	v.SetDefault("ses_region", "us-west-2")
	v.SetDefault("email_from_address", "noreply@nasa.gov")
	v.SetDefault("telegram_rate_limit", 20)
	v.SetDefault("api_port", ":8080")
	v.SetDefault("api_base_path", "/api/v0")
	v.SetDefault("digest_hour", 23)
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config

	cfg.Stage = v.GetString("stage")
	cfg.LogGroup = v.GetString("log_group")
	cfg.NotificationTableName = v.GetString("notification_table_name")
	cfg.MutedMode = v.GetBool("muted_mode")
	cfg.MaxDailyWarns = v.GetInt("max_daily_warns")

	emails, err := stringList(v.Get("notification_emails"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid notification_emails: %w", err)
	}
	cfg.NotificationEmails = emails

	cfg.Logging.Dir = v.GetString("log_dir")
	cfg.Logging.Level = v.GetString("log_level")

	cfg.DB.DSN = v.GetString("db_dsn")

	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	cfg.Kafka.Brokers = v.GetString("kafka_brokers")
	cfg.Kafka.Topic = v.GetString("kafka_topic")
	cfg.Kafka.GroupID = v.GetString("kafka_group_id")

	cfg.Email.Provider = strings.ToLower(v.GetString("email_provider"))
	cfg.Email.Region = v.GetString("ses_region")
	cfg.Email.SenderARN = v.GetString("ses_sender_arn")
	cfg.Email.ConfigSetName = v.GetString("ses_config_set_name")
	cfg.Email.FromAddress = v.GetString("email_from_address")
	cfg.Email.ResendAPIKey = v.GetString("resend_api_key")

	cfg.Telegram.BotToken = v.GetString("telegram_bot_token")
	cfg.Telegram.RateLimit = v.GetInt("telegram_rate_limit")
	chatIDs, err := stringList(v.Get("telegram_chat_ids"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid telegram_chat_ids: %w", err)
	}
	for _, raw := range chatIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid telegram chat id %q: %w", raw, err)
		}
		cfg.Telegram.ChatIDs = append(cfg.Telegram.ChatIDs, id)
	}

	cfg.API.Port = v.GetString("api_port")
	cfg.API.BasePath = v.GetString("api_base_path")

	cfg.Digest.Hour = v.GetInt("digest_hour")

	return cfg, nil
}

// stringList accepts a JSON array string, a comma separated string or a
// list from the config file.
func stringList(raw interface{}) ([]string, error) {
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return trimAll(val), nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return trimAll(out), nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		if strings.HasPrefix(s, "[") {
			var items []interface{}
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, err
			}
			return stringList(items)
		}
		return trimAll(strings.Split(s, ",")), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks required settings and value ranges.
func (c Config) Validate() error {
	missing := []string{}
	if c.LogGroup == "" {
		missing = append(missing, "log_group")
	}
	if c.NotificationTableName == "" {
		missing = append(missing, "notification_table_name")
	}
	if c.DB.DSN == "" {
		missing = append(missing, "db_dsn")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configurations: %v", missing)
	}

	if c.MaxDailyWarns < 0 {
		return fmt.Errorf("max_daily_warns must be >= 0, got %d", c.MaxDailyWarns)
	}
	if c.Digest.Hour < 0 || c.Digest.Hour > 23 {
		return fmt.Errorf("digest_hour must be between 0 and 23, got %d", c.Digest.Hour)
	}
	switch c.Email.Provider {
	case "ses", "resend":
	default:
		return fmt.Errorf("unknown email_provider %q", c.Email.Provider)
	}
	return nil
}

// FromHeader is the From header used on every outbound email.
func (c Config) FromHeader() string {
	return fmt.Sprintf("%s Sigevent <%s>", c.Stage, c.Email.FromAddress)
}
