package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

// PeriodConfig is one row of the static workday period table. Start/End use
// the wall-clock "HH:MM" form; event-driven periods leave End empty.
type PeriodConfig struct {
	ID          string                  `mapstructure:"ID"`
	DisplayName string                  `mapstructure:"DISPLAY_NAME"`
	Start       string                  `mapstructure:"START"`
	End         string                  `mapstructure:"END"`
	EventDriven bool                    `mapstructure:"EVENT_DRIVEN"`
	Tasks       map[string][]TaskConfig `mapstructure:"TASKS"`
}

type TaskConfig struct {
	ID          string   `mapstructure:"ID"`
	Title       string   `mapstructure:"TITLE"`
	Upload      string   `mapstructure:"UPLOAD"`
	LinkedTasks []string `mapstructure:"LINKED_TASKS"`
	Notice      bool     `mapstructure:"NOTICE"`
}

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type     string `mapstructure:"TYPE"`
		Host     string `mapstructure:"HOST"`
		Port     string `mapstructure:"PORT"`
		DBNAME   string `mapstructure:"DBNAME"`
		User     string `mapstructure:"USER"`
		Password string `mapstructure:"PASSWORD"`
		SSLMode  string `mapstructure:"SSLMODE"`
		Timezone string `mapstructure:"TIMEZONE"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`
	Workday struct {
		Timezone    string         `mapstructure:"TIMEZONE"`
		OpeningHour int            `mapstructure:"OPENING_HOUR"`
		Roles       []string       `mapstructure:"ROLES"`
		Periods     []PeriodConfig `mapstructure:"PERIODS"`
	} `mapstructure:"WORKDAY"`
	Sync struct {
		Channel string `mapstructure:"CHANNEL"`
	} `mapstructure:"SYNC"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	return &cfg
}
