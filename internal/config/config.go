package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Mail     MailConfig
	CRM      CRMConfig
	API      APIConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type MailConfig struct {
	Host    string
	Port    int
	User    string
	Pass    string
	From    string
	Enabled bool
}

type CRMConfig struct {
	// SystemUserID is the acting user recorded on follow-up machinery
	// created for leads that have no owner.
	SystemUserID uint
	// ReminderHoursAhead is the look-ahead window for task reminder mail.
	ReminderHoursAhead int
}

type APIConfig struct {
	Key string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("MAIL_PORT", 587)
	viper.SetDefault("MAIL_FROM", "no-reply@leadflow.local")
	viper.SetDefault("MAIL_ENABLED", true)
	viper.SetDefault("CRM_SYSTEM_USER_ID", 1)
	viper.SetDefault("CRM_REMINDER_HOURS_AHEAD", 24)

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Mail: MailConfig{
			Host:    viper.GetString("MAIL_HOST"),
			Port:    viper.GetInt("MAIL_PORT"),
			User:    viper.GetString("MAIL_USER"),
			Pass:    viper.GetString("MAIL_PASS"),
			From:    viper.GetString("MAIL_FROM"),
			Enabled: viper.GetBool("MAIL_ENABLED"),
		},
		CRM: CRMConfig{
			SystemUserID:       viper.GetUint("CRM_SYSTEM_USER_ID"),
			ReminderHoursAhead: viper.GetInt("CRM_REMINDER_HOURS_AHEAD"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Mail.Enabled && cfg.Mail.Host == "" {
		log.Println("WARNING: MAIL_HOST is not set, reminder emails will fail")
	}

	return cfg, nil
}

// LoadDatabaseOnly loads just the database section, for bootstrap tooling.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return &cfg.Database, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
