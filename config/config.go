/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/suparena/userstore/storagemodels"
)

// Storage providers selectable through STORAGE_PROVIDER.
const (
	ProviderDynamoDB = "dynamodb"
	ProviderMemory   = "memory"
	ProviderSeed     = "seed"
)

// Config is the storage configuration shared by every entrypoint.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"aws-micro-frontend-backend" validate:"required"`
	Stage       string `env:"STAGE"        envDefault:"dev"                        validate:"required"`
	Region      string `env:"REGION"       envDefault:"us-east-1"                  validate:"required"`
	TableName   string `env:"TABLE_NAME,expand" envDefault:"${SERVICE_NAME}-main-${STAGE}" validate:"required"`
	Endpoint    string `env:"DDB_ENDPOINT" validate:"omitempty,url"`

	Provider     string `env:"STORAGE_PROVIDER" envDefault:"dynamodb" validate:"oneof=dynamodb memory seed"`
	SeedFallback bool   `env:"SEED_FALLBACK"    envDefault:"false"`

	OpTimeout        time.Duration `env:"DDB_OP_TIMEOUT"         envDefault:"5s"   validate:"gt=0"`
	MaxRetries       uint          `env:"DDB_MAX_RETRIES"        envDefault:"3"    validate:"gte=1,lte=10"`
	RetryBackoff     time.Duration `env:"DDB_RETRY_BACKOFF"      envDefault:"100ms"`
	MaxRetryBackoff  time.Duration `env:"DDB_MAX_RETRY_BACKOFF"  envDefault:"2s"`
	BreakerMinCalls  uint32        `env:"DDB_BREAKER_MIN_CALLS"  envDefault:"10"`
	BreakerRatio     float64       `env:"DDB_BREAKER_RATIO"      envDefault:"0.6"  validate:"gt=0,lte=1"`
	BreakerOpenDelay time.Duration `env:"DDB_BREAKER_OPEN_DELAY" envDefault:"30s"`

	LogLevel         string `env:"LOG_LEVEL"         envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT"        envDefault:"json" validate:"oneof=json console"`
	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"userstore"`
}

// MigrationConfig adds the legacy table names read by the migration job.
type MigrationConfig struct {
	Config

	OldUsersTable     string        `env:"OLD_USERS_TABLE,expand"     envDefault:"${SERVICE_NAME}-users-${STAGE}"     validate:"required"`
	OldDashboardTable string        `env:"OLD_DASHBOARD_TABLE,expand" envDefault:"${SERVICE_NAME}-dashboard-${STAGE}" validate:"required"`
	PageSize          int32         `env:"MIGRATION_PAGE_SIZE"        envDefault:"100"                                 validate:"gt=0"`
	TableWait         time.Duration `env:"MIGRATION_TABLE_WAIT"       envDefault:"2m"                                  validate:"gt=0"`
}

var validate = validator.New()

// Load reads Config from the process environment.
func Load() (*Config, error) {
	return load[Config](env.Options{})
}

// LoadMigration reads MigrationConfig from the process environment.
func LoadMigration() (*MigrationConfig, error) {
	return load[MigrationConfig](env.Options{})
}

// LoadFrom reads Config from vars instead of the process environment. A nil
// map means no variables are set.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load[Config](env.Options{Environment: orEmpty(vars)})
}

// LoadMigrationFrom reads MigrationConfig from vars instead of the process
// environment.
func LoadMigrationFrom(vars map[string]string) (*MigrationConfig, error) {
	return load[MigrationConfig](env.Options{Environment: orEmpty(vars)})
}

func orEmpty(vars map[string]string) map[string]string {
	if vars == nil {
		return map[string]string{}
	}
	return vars
}

func load[T any](opts env.Options) (*T, error) {
	cfg, err := env.ParseAsWithOptions[T](opts)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// StoreOptions converts the DynamoDB tuning knobs into store options.
func (c *Config) StoreOptions() []storagemodels.StoreOption {
	return []storagemodels.StoreOption{
		storagemodels.WithOpTimeout(c.OpTimeout),
		storagemodels.WithMaxRetries(c.MaxRetries),
		storagemodels.WithRetryBackoff(c.RetryBackoff, c.MaxRetryBackoff),
		storagemodels.WithBreaker(c.ServiceName+"-dynamodb", c.BreakerMinCalls, c.BreakerRatio, c.BreakerOpenDelay),
	}
}
