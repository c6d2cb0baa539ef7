package config

import (
	"os"
	"strings"
)

// applyEnvironment overrides file settings from the environment. AWS
// credentials in particular are normally injected rather than committed to
// the config file.
func applyEnvironment(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.S3.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.S3.Region = strings.TrimSpace(v)
		if cfg.Metrics.Region == "" {
			cfg.Metrics.Region = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = strings.TrimSpace(v)
	}
}
