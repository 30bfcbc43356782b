package goReset

import (
	"errors"
	"time"
)

// Config defines a public type used by goReset APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Reset    ResetConfig
	Password PasswordConfig
	Mail     MailConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
RESET CONFIG
====================================
*/

// ResetConfig defines a public type used by goReset APIs.
//
// ResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResetConfig struct {
	CodeDigits          int
	CodeTTL             time.Duration
	TokenTTL            time.Duration
	Cooldown            time.Duration
	MaxVerifyAttempts   int
	MaxRequestsPerEmail int
	MaxRequestsPerIP    int
	RateWindow          time.Duration
	MinPasswordLength   int
	RedisPrefix         string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goReset APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// MailConfig defines a public type used by goReset APIs.
//
// MailConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MailConfig struct {
	Subject     string
	SendTimeout time.Duration
}

// AuditConfig defines a public type used by goReset APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goReset APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Reset: ResetConfig{
			CodeDigits:          6,
			CodeTTL:             10 * time.Minute,
			TokenTTL:            5 * time.Minute,
			Cooldown:            60 * time.Second,
			MaxVerifyAttempts:   5,
			MaxRequestsPerEmail: 3,
			MaxRequestsPerIP:    10,
			RateWindow:          time.Hour,
			MinPasswordLength:   8,
			RedisPrefix:         "gr",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Mail: MailConfig{
			Subject:     "Your password reset code",
			SendTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Reset.CodeDigits < 6 || c.Reset.CodeDigits > 10 {
		return errors.New("Reset CodeDigits must be between 6 and 10")
	}
	if c.Reset.CodeTTL <= 0 {
		return errors.New("Reset CodeTTL must be positive")
	}
	if c.Reset.TokenTTL <= 0 || c.Reset.TokenTTL > c.Reset.CodeTTL {
		return errors.New("Reset TokenTTL must be positive and not exceed CodeTTL")
	}
	if c.Reset.Cooldown <= 0 {
		return errors.New("Reset Cooldown must be positive")
	}
	if c.Reset.MaxVerifyAttempts <= 0 {
		return errors.New("Reset MaxVerifyAttempts must be positive")
	}
	if c.Reset.MaxRequestsPerEmail <= 0 || c.Reset.MaxRequestsPerIP <= 0 {
		return errors.New("Reset request window caps must be positive")
	}
	if c.Reset.RateWindow < c.Reset.Cooldown {
		return errors.New("Reset RateWindow must not be shorter than Cooldown")
	}
	if c.Reset.MinPasswordLength < 8 {
		return errors.New("Reset MinPasswordLength must be >= 8")
	}
	if c.Reset.RedisPrefix == "" {
		return errors.New("Reset RedisPrefix must not be empty")
	}
	if c.Mail.SendTimeout <= 0 {
		return errors.New("Mail SendTimeout must be positive")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}
