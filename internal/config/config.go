// Package config loads the module's runtime configuration from environment
// variables, falling back to the documented defaults spec.md §6 names.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every section the core needs.
type Config struct {
	Exchange     ExchangeConfig     `json:"exchange"`
	Database     DatabaseConfig     `json:"database"`
	Vault        VaultConfig        `json:"vault"`
	Redis        RedisConfig        `json:"redis"`
	Logging      LoggingConfig      `json:"logging"`
	Thresholds   ThresholdsConfig   `json:"thresholds"`
	Collector    CollectorConfig    `json:"collector"`
	Screener     ScreenerConfig     `json:"screener"`
	Paper        PaperConfig        `json:"paper"`
	Monitor      MonitorConfig      `json:"monitor"`
	NotifyGate   NotifyGateConfig   `json:"notify_gate"`
	Server       ServerConfig       `json:"server"`
}

// ExchangeConfig names the market-data source and (optional) authenticated
// credentials. Credentials are only read from Vault/env when authenticated
// operations (balance/order inspection) are needed; the public channel
// never requires them.
type ExchangeConfig struct {
	BaseURL        string        `json:"base_url"`
	APIKey         string        `json:"api_key"`
	SecretKey      string        `json:"secret_key"`
	MinCallSpacing time.Duration `json:"min_call_spacing"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DatabaseConfig holds connection strings for the relational store and the
// TSDB store — distinct URLs per spec.md §6, though both are realized over
// the same pgx driver (see DESIGN.md).
type DatabaseConfig struct {
	RelationalURL string `json:"relational_url"`
	TSDBURL       string `json:"tsdb_url"`
}

// VaultConfig configures the HashiCorp Vault client used to read the
// exchange API key/secret pair. When Enabled is false the client falls
// back to ExchangeConfig's plain env-var credentials.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
}

// RedisConfig configures the market-data cache mirror.
type RedisConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	DB      int    `json:"db"`
}

// LoggingConfig matches internal/logging.Config's shape exactly so it can
// be passed straight through.
type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// ThresholdsConfig names the spec.md §6 threshold env vars.
type ThresholdsConfig struct {
	UpdateInterval    time.Duration `json:"update_interval"`
	MinVolumeUSD      float64       `json:"min_volume_usd"`
	MinPriceChange5m  float64       `json:"min_price_change_5m"`
	MinPriceChange15m float64       `json:"min_price_change_15m"`
	BetaThreshold     float64       `json:"beta_threshold"`
}

// CollectorConfig tunes the k-line collector's walk cadence (spec.md §4.4).
type CollectorConfig struct {
	BaseTimeframe    string        `json:"base_timeframe"`
	BatchSize        int           `json:"batch_size"`
	InterSymbolSleep time.Duration `json:"inter_symbol_sleep"`
	InterBatchSleep  time.Duration `json:"inter_batch_sleep"`
	InterCycleSleep  time.Duration `json:"inter_cycle_sleep"`
	RateLimitSleep   time.Duration `json:"rate_limit_sleep"`
	CandlesPerFetch  int           `json:"candles_per_fetch"`
	StopJoinTimeout  time.Duration `json:"stop_join_timeout"`
}

// ScreenerConfig tunes one screening pass (spec.md §4.5).
type ScreenerConfig struct {
	WorkerCount       int           `json:"worker_count"`
	PassTimeout       time.Duration `json:"pass_timeout"`
	CandlesPerSymbol  int           `json:"candles_per_symbol"`
	StaleAfter        time.Duration `json:"stale_after"`
	BetaRejectBelow   float64       `json:"beta_reject_below"`
	TotalRejectBelow  float64       `json:"total_reject_below"`
}

// PaperConfig holds paper-trading settings read from the environment. Only
// PreferredWindowBonus and OperatorTimezone are wired into the running
// app; the Default* fields and AutoEntryPolicy are not applied to new sim
// accounts, which take their settings from the create-account request and
// the sim_accounts column defaults.
type PaperConfig struct {
	DefaultCommissionRate float64   `json:"default_commission_rate"`
	DefaultMaxPositions   int       `json:"default_max_positions"`
	DefaultPositionPct    float64   `json:"default_position_pct"`
	DefaultEntryScoreMin  float64   `json:"default_entry_score_min"`
	DefaultEntryTechMin   float64   `json:"default_entry_technical_min"`
	DefaultStopLossPct    float64   `json:"default_stop_loss_pct"`
	DefaultTakeProfitPcts []float64 `json:"default_take_profit_pcts"`
	AutoEntryPolicy       string    `json:"auto_entry_policy"` // "strict_conjunction" or "volume_breakout"
	PreferredWindowBonus  float64   `json:"preferred_window_bonus"`
	OperatorTimezone      string    `json:"operator_timezone"`
}

// MonitorConfig drives the C7 scheduler cadence (spec.md §4.7).
type MonitorConfig struct {
	Timeframes           []string      `json:"timeframes"`
	RetentionSweepEvery  int           `json:"retention_sweep_every_days"`
	CandleRetention      time.Duration `json:"candle_retention"`
	SnapshotRetention    time.Duration `json:"snapshot_retention"`
	PreferredWindowStart int           `json:"preferred_window_start"` // hour, local time
	PreferredWindowEnd   int           `json:"preferred_window_end"`
}

// NotifyGateConfig seeds the singleton notification settings row on first
// boot (spec.md §3).
type NotifyGateConfig struct {
	MinIntervalMinutes int     `json:"min_interval_minutes"`
	DailyLimit         int     `json:"daily_limit"`
	MinScoreThreshold  float64 `json:"min_score_threshold"`
	NotifyTopN         int     `json:"notify_top_n"`
	QuietHourStart     int     `json:"quiet_hour_start"`
	QuietHourEnd       int     `json:"quiet_hour_end"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Load builds a Config from a best-effort config.json overlaid with
// environment variables, mirroring the teacher's load-then-override shape.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Exchange.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", orDefault(cfg.Exchange.BaseURL, "https://api.binance.com"))
	cfg.Exchange.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.Exchange.APIKey)
	cfg.Exchange.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.Exchange.SecretKey)
	cfg.Exchange.MinCallSpacing = getEnvDurationOrDefault("EXCHANGE_MIN_CALL_SPACING", 100*time.Millisecond)
	cfg.Exchange.RequestTimeout = getEnvDurationOrDefault("EXCHANGE_REQUEST_TIMEOUT", 10*time.Second)

	cfg.Database.RelationalURL = getEnvOrDefault("DATABASE_URL", cfg.Database.RelationalURL)
	cfg.Database.TSDBURL = getEnvOrDefault("TSDB_DATABASE_URL", orDefault(cfg.Database.TSDBURL, cfg.Database.RelationalURL))

	cfg.Vault.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.Vault.Address = getEnvOrDefault("VAULT_ADDR", "http://localhost:8200")
	cfg.Vault.Token = getEnvOrDefault("VAULT_TOKEN", cfg.Vault.Token)
	cfg.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", "secret")
	cfg.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", "screener/exchange-key")

	cfg.Redis.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", 0)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.Logging.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.Logging.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	cfg.Thresholds.UpdateInterval = getEnvDurationOrDefault("UPDATE_INTERVAL", 300*time.Second)
	cfg.Thresholds.MinVolumeUSD = getEnvFloatOrDefault("MIN_VOLUME_USD", 1_000_000)
	cfg.Thresholds.MinPriceChange5m = getEnvFloatOrDefault("MIN_PRICE_CHANGE_5M", 0)
	cfg.Thresholds.MinPriceChange15m = getEnvFloatOrDefault("MIN_PRICE_CHANGE_15M", 0)
	cfg.Thresholds.BetaThreshold = getEnvFloatOrDefault("BETA_THRESHOLD", 30)

	cfg.Collector.BaseTimeframe = getEnvOrDefault("COLLECTOR_BASE_TIMEFRAME", "5m")
	cfg.Collector.BatchSize = getEnvIntOrDefault("COLLECTOR_BATCH_SIZE", 20)
	cfg.Collector.InterSymbolSleep = getEnvDurationOrDefault("COLLECTOR_INTER_SYMBOL_SLEEP", 500*time.Millisecond)
	cfg.Collector.InterBatchSleep = getEnvDurationOrDefault("COLLECTOR_INTER_BATCH_SLEEP", 5*time.Second)
	cfg.Collector.InterCycleSleep = getEnvDurationOrDefault("COLLECTOR_INTER_CYCLE_SLEEP", 60*time.Second)
	cfg.Collector.RateLimitSleep = getEnvDurationOrDefault("COLLECTOR_RATE_LIMIT_SLEEP", 60*time.Second)
	cfg.Collector.CandlesPerFetch = getEnvIntOrDefault("COLLECTOR_CANDLES_PER_FETCH", 500)
	cfg.Collector.StopJoinTimeout = getEnvDurationOrDefault("COLLECTOR_STOP_JOIN_TIMEOUT", 5*time.Second)

	cfg.Screener.WorkerCount = getEnvIntOrDefault("SCREENER_WORKER_COUNT", 10)
	cfg.Screener.PassTimeout = getEnvDurationOrDefault("SCREENER_PASS_TIMEOUT", 120*time.Second)
	cfg.Screener.CandlesPerSymbol = getEnvIntOrDefault("SCREENER_CANDLES_PER_SYMBOL", 500)
	cfg.Screener.StaleAfter = getEnvDurationOrDefault("SCREENER_STALE_AFTER", time.Hour)
	cfg.Screener.BetaRejectBelow = getEnvFloatOrDefault("SCREENER_BETA_REJECT_BELOW", 30)
	cfg.Screener.TotalRejectBelow = getEnvFloatOrDefault("SCREENER_TOTAL_REJECT_BELOW", 40)

	cfg.Paper.DefaultCommissionRate = getEnvFloatOrDefault("PAPER_COMMISSION_RATE", 0.001)
	cfg.Paper.DefaultMaxPositions = getEnvIntOrDefault("PAPER_DEFAULT_MAX_POSITIONS", 5)
	cfg.Paper.DefaultPositionPct = getEnvFloatOrDefault("PAPER_DEFAULT_POSITION_PCT", 2.0)
	cfg.Paper.DefaultEntryScoreMin = getEnvFloatOrDefault("PAPER_DEFAULT_ENTRY_SCORE_MIN", 75.0)
	cfg.Paper.DefaultEntryTechMin = getEnvFloatOrDefault("PAPER_DEFAULT_ENTRY_TECHNICAL_MIN", 60.0)
	cfg.Paper.DefaultStopLossPct = getEnvFloatOrDefault("PAPER_DEFAULT_STOP_LOSS_PCT", 3.0)
	if len(cfg.Paper.DefaultTakeProfitPcts) == 0 {
		cfg.Paper.DefaultTakeProfitPcts = []float64{6, 9, 12}
	}
	cfg.Paper.AutoEntryPolicy = getEnvOrDefault("PAPER_AUTO_ENTRY_POLICY", "strict_conjunction")
	cfg.Paper.PreferredWindowBonus = getEnvFloatOrDefault("PAPER_PREFERRED_WINDOW_BONUS", 5.0)
	cfg.Paper.OperatorTimezone = getEnvOrDefault("OPERATOR_TIMEZONE", "Asia/Shanghai")

	if len(cfg.Monitor.Timeframes) == 0 {
		cfg.Monitor.Timeframes = []string{"15m", "1h"}
	}
	cfg.Monitor.RetentionSweepEvery = getEnvIntOrDefault("MONITOR_RETENTION_SWEEP_EVERY_DAYS", 1)
	cfg.Monitor.CandleRetention = getEnvDurationOrDefault("CANDLE_RETENTION", 15*24*time.Hour)
	cfg.Monitor.SnapshotRetention = getEnvDurationOrDefault("SNAPSHOT_RETENTION", 7*24*time.Hour)
	cfg.Monitor.PreferredWindowStart = getEnvIntOrDefault("PREFERRED_WINDOW_START", 8)
	cfg.Monitor.PreferredWindowEnd = getEnvIntOrDefault("PREFERRED_WINDOW_END", 22)

	cfg.NotifyGate.MinIntervalMinutes = getEnvIntOrDefault("NOTIFY_MIN_INTERVAL_MINUTES", 30)
	cfg.NotifyGate.DailyLimit = getEnvIntOrDefault("NOTIFY_DAILY_LIMIT", 20)
	cfg.NotifyGate.MinScoreThreshold = getEnvFloatOrDefault("NOTIFY_MIN_SCORE_THRESHOLD", 60)
	cfg.NotifyGate.NotifyTopN = getEnvIntOrDefault("NOTIFY_TOP_N", 5)
	cfg.NotifyGate.QuietHourStart = getEnvIntOrDefault("NOTIFY_QUIET_HOUR_START", 22)
	cfg.NotifyGate.QuietHourEnd = getEnvIntOrDefault("NOTIFY_QUIET_HOUR_END", 7)

	cfg.Server.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.Server.Port = getEnvIntOrDefault("WEB_PORT", 8080)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
