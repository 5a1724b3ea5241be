// Package config loads configs/config.yml through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SMARTHOME_PLATFORM_TOKEN.
const EnvPrefix = "SMARTHOME"

type Config struct {
	Platform   PlatformConfig
	Collector  CollectorConfig
	Automation AutomationConfig
	DB         DBConfig
	InfluxDB   InfluxDBConfig
	MQTT       MQTTConfig
	HTTP       HTTPConfig
	Auth       AuthConfig
	Log        LogConfig
}

type PlatformConfig struct {
	Name  string
	URL   string
	Token string
}

type CollectorConfig struct {
	Enabled    bool
	Interval   time.Duration
	RetryDelay time.Duration
}

type AutomationConfig struct {
	Dehumidifier DehumidifierConfig
}

// DehumidifierConfig configures the bathroom dehumidifier automation.
type DehumidifierConfig struct {
	Enabled           bool
	HumiditySensor    string
	TemperatureSensor string
	Device            string
	HumidityHigh      float64
	HumidityLow       float64
	Delay             time.Duration
	CheckInterval     time.Duration
}

type DBConfig struct {
	Path string
}

type InfluxDBConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
}

type HTTPConfig struct {
	Port string
}

type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.name", "home_assistant")

	v.SetDefault("collector.enabled", true)
	v.SetDefault("collector.interval", "300s")
	v.SetDefault("collector.retry_delay", "60s")

	v.SetDefault("automation.dehumidifier.enabled", false)
	v.SetDefault("automation.dehumidifier.humidity_threshold_high", 70.0)
	v.SetDefault("automation.dehumidifier.humidity_threshold_low", 60.0)
	v.SetDefault("automation.dehumidifier.dehumidifier_delay", "300s")
	v.SetDefault("automation.dehumidifier.check_interval", "60s")

	v.SetDefault("db.path", "app.db")

	v.SetDefault("influxdb.enabled", false)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.client_id", "smarthome-collector")
	v.SetDefault("mqtt.topic_prefix", "smarthome")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("http.port", "8080")

	v.SetDefault("auth.token_ttl", "12h")

	v.SetDefault("log.level", "info")
}

// Load reads config.yml from dir, applies defaults and SMARTHOME_* overrides and
// validates the result. A missing file is not an error; defaults and env apply.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Platform: PlatformConfig{
			Name:  v.GetString("platform.name"),
			URL:   v.GetString("platform.url"),
			Token: v.GetString("platform.token"),
		},
		Collector: CollectorConfig{
			Enabled:    v.GetBool("collector.enabled"),
			Interval:   v.GetDuration("collector.interval"),
			RetryDelay: v.GetDuration("collector.retry_delay"),
		},
		Automation: AutomationConfig{
			Dehumidifier: DehumidifierConfig{
				Enabled:           v.GetBool("automation.dehumidifier.enabled"),
				HumiditySensor:    v.GetString("automation.dehumidifier.humidity_sensor"),
				TemperatureSensor: v.GetString("automation.dehumidifier.temperature_sensor"),
				Device:            v.GetString("automation.dehumidifier.device"),
				HumidityHigh:      v.GetFloat64("automation.dehumidifier.humidity_threshold_high"),
				HumidityLow:       v.GetFloat64("automation.dehumidifier.humidity_threshold_low"),
				Delay:             v.GetDuration("automation.dehumidifier.dehumidifier_delay"),
				CheckInterval:     v.GetDuration("automation.dehumidifier.check_interval"),
			},
		},
		DB: DBConfig{Path: v.GetString("db.path")},
		InfluxDB: InfluxDBConfig{
			Enabled: v.GetBool("influxdb.enabled"),
			URL:     v.GetString("influxdb.url"),
			Token:   v.GetString("influxdb.token"),
			Org:     v.GetString("influxdb.org"),
			Bucket:  v.GetString("influxdb.bucket"),
		},
		MQTT: MQTTConfig{
			Enabled:     v.GetBool("mqtt.enabled"),
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			TopicPrefix: v.GetString("mqtt.topic_prefix"),
			QoS:         byte(v.GetUint("mqtt.qos")),
		},
		HTTP: HTTPConfig{Port: v.GetString("http.port")},
		Auth: AuthConfig{
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		Log: LogConfig{Level: v.GetString("log.level")},
	}
}

// Validate checks the settings that cannot be defaulted. Platform credentials are
// checked later by the platform factory.
func (c *Config) Validate() error {
	if c.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be positive, got %s", c.Collector.Interval)
	}
	if c.Collector.RetryDelay <= 0 {
		return fmt.Errorf("collector.retry_delay must be positive, got %s", c.Collector.RetryDelay)
	}

	d := c.Automation.Dehumidifier
	if d.HumidityHigh <= d.HumidityLow {
		return fmt.Errorf("automation.dehumidifier: humidity_threshold_high (%v) must exceed humidity_threshold_low (%v)",
			d.HumidityHigh, d.HumidityLow)
	}
	if d.Delay < 0 {
		return fmt.Errorf("automation.dehumidifier.dehumidifier_delay must not be negative")
	}
	if d.Enabled {
		if d.HumiditySensor == "" || d.Device == "" {
			return errors.New("automation.dehumidifier: humidity_sensor and device are required when enabled")
		}
		if d.CheckInterval <= 0 {
			return errors.New("automation.dehumidifier.check_interval must be positive")
		}
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		return errors.New("influxdb: url, org and bucket are required when enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required when enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}
