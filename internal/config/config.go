package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func Load() error {
	// Storage
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_DSN", "energy.sqlite3")

	// Live feed
	viper.SetDefault("MQTT_BROKER", "tcp://127.0.0.1:1883")
	viper.SetDefault("MQTT_CLIENT_ID", "mqtt2sqlite")
	viper.SetDefault("MQTT_KEEPALIVE", "5s")

	// Read endpoint
	viper.SetDefault("API_ADDR", ":80")

	// Backfill inputs, read from BACKFILL_S3_BUCKET instead of disk when set
	viper.SetDefault("BACKFILL_DSMR", "dsmr.tsv")
	viper.SetDefault("BACKFILL_KAMSTRUP", "kamstrup.ndjson")
	viper.SetDefault("BACKFILL_S3_BUCKET", "")
	viper.SetDefault("AWS_REGION", "us-east-1")

	// Latest-reading cache, disabled when empty
	viper.SetDefault("REDIS_ADDR", "")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TZ_NAME", "Local")

	viper.AutomaticEnv()

	if _, err := zerolog.ParseLevel(viper.GetString("LOG_LEVEL")); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	if _, err := time.LoadLocation(viper.GetString("TZ_NAME")); err != nil {
		return errors.Wrap(err, "TZ_NAME")
	}
	return nil
}

func DBDriver() string             { return viper.GetString("DB_DRIVER") }
func DBDSN() string                { return viper.GetString("DB_DSN") }
func MQTTBroker() string           { return viper.GetString("MQTT_BROKER") }
func MQTTClientID() string         { return viper.GetString("MQTT_CLIENT_ID") }
func MQTTKeepAlive() time.Duration { return viper.GetDuration("MQTT_KEEPALIVE") }
func APIAddr() string              { return viper.GetString("API_ADDR") }
func BackfillDSMR() string         { return viper.GetString("BACKFILL_DSMR") }
func BackfillKamstrup() string     { return viper.GetString("BACKFILL_KAMSTRUP") }
func BackfillS3Bucket() string     { return viper.GetString("BACKFILL_S3_BUCKET") }
func AWSRegion() string            { return viper.GetString("AWS_REGION") }
func RedisAddr() string            { return viper.GetString("REDIS_ADDR") }

// LogLevel falls back to info; Load has already rejected unknown names.
func LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(viper.GetString("LOG_LEVEL"))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Location is the zone used for timestamps that carry no UTC offset.
func Location() *time.Location {
	loc, err := time.LoadLocation(viper.GetString("TZ_NAME"))
	if err != nil {
		return time.Local
	}
	return loc
}
