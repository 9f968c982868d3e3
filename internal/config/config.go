package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
)

type Config struct {
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	REDIS_URL      string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	KAFKA_ADDRESS  string
	JWT_SECRET     string
	REFRESH_SECRET string
	VAPID_PUBLIC   string
	VAPID_PRIVATE  string
	VAPID_SUBJECT  string

	ServerPort      string
	LogLevel        string
	RestaurantLat   float64
	RestaurantLng   float64
	DeliveryRadius  float64
	TaxRate         float64
	DeliveryFee     float64
	CacheTTLSeconds int
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:        getEnv("DB_HOST", "localhost"),
		DB_PORT:        getEnv("DB_PORT", "5432"),
		DB_USER:        getEnv("DB_USER", "postgres"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        getEnv("DB_NAME", "curryleaf"),
		REDIS_URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		KAFKA_ADDRESS:  os.Getenv("KAFKA_ADDRESS"),
		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		REFRESH_SECRET: os.Getenv("REFRESH_SECRET"),
		VAPID_PUBLIC:   os.Getenv("VAPID_PUBLIC_KEY"),
		VAPID_PRIVATE:  os.Getenv("VAPID_PRIVATE_KEY"),
		VAPID_SUBJECT:  getEnv("VAPID_SUBJECT", "mailto:orders@curryleaf.example"),

		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RestaurantLat:   getEnvAsFloat("RESTAURANT_LAT", 13.0878),
		RestaurantLng:   getEnvAsFloat("RESTAURANT_LNG", 80.2085),
		DeliveryRadius:  getEnvAsFloat("DELIVERY_RADIUS_KM", 10),
		TaxRate:         getEnvAsFloat("TAX_RATE", 0.05),
		DeliveryFee:     getEnvAsFloat("DELIVERY_FEE", 30),
		CacheTTLSeconds: getEnvAsInt("CACHE_TTL", 300),
	}

	return config, nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB_USER, c.DB_PASSWORD, c.DB_HOST, c.DB_PORT, c.DB_NAME,
	)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema and, on Postgres, the trigger feeding the
// order change channel that the tracking listener subscribes to.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.MenuItem{},
		&models.User{},
		&models.RefreshToken{},
		&models.CartItem{},
		&models.Address{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusLog{},
		&models.PushSubscription{},
	); err != nil {
		return fmt.Errorf("failed to run migration: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, stmt := range orderNotifyStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to install order notify trigger: %w", err)
		}
	}
	return nil
}

var orderNotifyStatements = []string{
	`CREATE OR REPLACE FUNCTION notify_order_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('order_events', json_build_object(
			'order_id', NEW.id,
			'user_id', NEW.user_id,
			'status', NEW.status,
			'updated_at', NEW.updated_at
		)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS orders_notify_change ON orders`,
	`CREATE TRIGGER orders_notify_change
		AFTER INSERT OR UPDATE OF status ON orders
		FOR EACH ROW EXECUTE FUNCTION notify_order_change()`,
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
