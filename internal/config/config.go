package config

import (
	"fmt"
	"os"
	"time"

	"hydro-monitor/common/config"

	"github.com/spf13/viper"
)

// Config 水培监控服务配置（hydro-monitor 与 hydro-recorder 共用）
type Config struct {
	Database  config.DatabaseConfig
	Redis     config.RedisConfig
	MQTT      config.MQTTConfig
	Predictor config.PredictorConfig

	// 设备数据订阅
	Feed struct {
		Topic        string  // 默认 "hydro/data"
		TankHeightCM float64 // 水箱高度（cm），用于水位换算
	}

	// 最新状态缓存
	Cache struct {
		StateKey string        // 默认 "hydro:state:latest"
		StateTTL time.Duration // 默认 300 秒
	}

	// Redis Streams
	Stream struct {
		Snapshots string // 派生快照流，默认 "hydro:snapshot:stream"
	}

	// 历史记录服务（消费快照流写 PostgreSQL）
	Recorder struct {
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int
		RetryInterval time.Duration // 重试 pending 消息的间隔
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}

	Metrics struct {
		ReportInterval time.Duration
	}
}

// Load 加载配置：环境变量优先，其次 CONFIG_FILE 指定的配置文件，最后默认值
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}

	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetInt("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Database = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Database.MaxConns = v.GetInt("DB_MAX_CONNS")
	cfg.Database.MaxIdle = v.GetInt("DB_MAX_IDLE")

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.MQTT.Broker = v.GetString("MQTT_BROKER")
	cfg.MQTT.ClientID = v.GetString("MQTT_CLIENT_ID")
	cfg.MQTT.Username = v.GetString("MQTT_USERNAME")
	cfg.MQTT.Password = v.GetString("MQTT_PASSWORD")

	qos := v.GetInt("FEED_QOS")
	if qos < 0 || qos > 2 {
		return nil, fmt.Errorf("invalid FEED_QOS %d: must be 0, 1 or 2", qos)
	}
	cfg.MQTT.QoS = byte(qos)

	cfg.Feed.Topic = v.GetString("FEED_TOPIC")
	cfg.Feed.TankHeightCM = v.GetFloat64("TANK_HEIGHT_CM")
	if cfg.Feed.TankHeightCM <= 0 {
		return nil, fmt.Errorf("invalid TANK_HEIGHT_CM %v: must be positive", cfg.Feed.TankHeightCM)
	}

	cfg.Cache.StateKey = v.GetString("CACHE_STATE_KEY")
	cfg.Cache.StateTTL = seconds(v, "CACHE_STATE_TTL", 300)

	cfg.Stream.Snapshots = v.GetString("STREAM_SNAPSHOTS")

	cfg.Recorder.ConsumerGroup = v.GetString("RECORDER_GROUP")
	cfg.Recorder.ConsumerName = v.GetString("RECORDER_CONSUMER")
	cfg.Recorder.BatchSize = v.GetInt("RECORDER_BATCH_SIZE")
	if cfg.Recorder.BatchSize <= 0 {
		cfg.Recorder.BatchSize = 10
	}
	cfg.Recorder.RetryInterval = seconds(v, "RECORDER_RETRY_INTERVAL", 30)

	cfg.Predictor.BaseURL = v.GetString("PREDICTOR_BASE_URL")
	cfg.Predictor.Timeout = seconds(v, "PREDICTOR_TIMEOUT", 30)
	cfg.Predictor.RetryCount = v.GetInt("PREDICTOR_RETRY_COUNT")
	if cfg.Predictor.RetryCount < 0 {
		cfg.Predictor.RetryCount = 0
	}

	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")

	cfg.Metrics.ReportInterval = seconds(v, "METRICS_REPORT_INTERVAL", 60)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hydro")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE", 5)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("MQTT_BROKER", "tcp://localhost:1883")
	v.SetDefault("MQTT_CLIENT_ID", "hydro-monitor")
	v.SetDefault("MQTT_USERNAME", "")
	v.SetDefault("MQTT_PASSWORD", "")

	v.SetDefault("FEED_TOPIC", "hydro/data")
	v.SetDefault("FEED_QOS", 1)
	v.SetDefault("TANK_HEIGHT_CM", 20.0)

	v.SetDefault("CACHE_STATE_KEY", "hydro:state:latest")
	v.SetDefault("CACHE_STATE_TTL", 300)

	v.SetDefault("STREAM_SNAPSHOTS", "hydro:snapshot:stream")

	v.SetDefault("RECORDER_GROUP", "hydro-recorder-group")
	v.SetDefault("RECORDER_CONSUMER", "hydro-recorder-1")
	v.SetDefault("RECORDER_BATCH_SIZE", 10)
	v.SetDefault("RECORDER_RETRY_INTERVAL", 30)

	v.SetDefault("PREDICTOR_BASE_URL", "http://localhost:5000")
	v.SetDefault("PREDICTOR_TIMEOUT", 30)
	v.SetDefault("PREDICTOR_RETRY_COUNT", 0)

	v.SetDefault("HTTP_ADDR", ":8080")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("METRICS_REPORT_INTERVAL", 60)
}

// seconds 读取以秒为单位的整数配置，非正值回落到默认值
func seconds(v *viper.Viper, key string, def int) time.Duration {
	n := v.GetInt(key)
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}
