package config

import (
	"fmt"
	"os"
	"strconv"
)

// Store backends the reconciler can be wired against.
const (
	BackendAppwrite = "appwrite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config of the kantin-reconciler job, loaded from environment variables.
type Config struct {
	// StoreBackend selects the document-store adapter: appwrite, postgres
	// or memory (dev fallback).
	StoreBackend string

	Appwrite struct {
		Endpoint   string
		ProjectID  string
		APIKey     string
		DatabaseID string
	}

	Collections struct {
		Users           string
		Tenants         string
		Products        string
		Orders          string
		InvitationCodes string
	}

	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Database string
		SSLMode  string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Report struct {
		StreamEnabled bool
		Stream        string
		ExcelPath     string
	}

	Log struct {
		Level  string
		Format string
	}

	Cleanup struct {
		GraceDays          int
		ProductLimit       int
		StaffLimit         int
		TenantUserLimit    int
		FreeTierTenantCap  int
		InvitationTTLHours int
		QueryLimit         int
	}
}

// DSN renders the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Database, c.Database.SSLMode)
}

func Load() *Config {
	cfg := &Config{}

	cfg.StoreBackend = getEnv("STORE_BACKEND", BackendAppwrite)

	cfg.Appwrite.Endpoint = getEnv("APPWRITE_ENDPOINT", "https://fra.cloud.appwrite.io/v1")
	cfg.Appwrite.ProjectID = getEnv("APPWRITE_PROJECT_ID", "")
	cfg.Appwrite.APIKey = getEnv("APPWRITE_API_KEY", "")
	cfg.Appwrite.DatabaseID = getEnv("DATABASE_ID", "kantin-db")

	cfg.Collections.Users = getEnv("USERS_COLLECTION_ID", "users")
	cfg.Collections.Tenants = getEnv("TENANTS_COLLECTION_ID", "tenants")
	cfg.Collections.Products = getEnv("PRODUCTS_COLLECTION_ID", "products")
	cfg.Collections.Orders = getEnv("ORDERS_COLLECTION_ID", "orders")
	cfg.Collections.InvitationCodes = getEnv("INVITATION_CODES_COLLECTION_ID", "invitation_codes")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "kantin")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Report.StreamEnabled = getEnv("REPORT_STREAM_ENABLED", "false") == "true"
	cfg.Report.Stream = getEnv("REPORT_STREAM", "reconciler:runs")
	cfg.Report.ExcelPath = getEnv("REPORT_EXCEL_PATH", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Cleanup.GraceDays = parseInt(getEnv("CLEANUP_GRACE_DAYS", "90"), 90)
	cfg.Cleanup.ProductLimit = parseInt(getEnv("CLEANUP_PRODUCT_LIMIT", "15"), 15)
	cfg.Cleanup.StaffLimit = parseInt(getEnv("CLEANUP_STAFF_LIMIT", "1"), 1)
	cfg.Cleanup.TenantUserLimit = parseInt(getEnv("CLEANUP_TENANT_USER_LIMIT", "1"), 1)
	cfg.Cleanup.FreeTierTenantCap = parseInt(getEnv("CLEANUP_FREE_TIER_TENANT_CAP", "2"), 2)
	cfg.Cleanup.InvitationTTLHours = parseInt(getEnv("CLEANUP_INVITATION_TTL_HOURS", "5"), 5)
	cfg.Cleanup.QueryLimit = parseInt(getEnv("CLEANUP_QUERY_LIMIT", "100"), 100)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
