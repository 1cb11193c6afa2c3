package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/f3rmion/fyenroll/bjj"
	"github.com/f3rmion/fyenroll/coordinator"
	"github.com/f3rmion/fyenroll/group"
	"github.com/f3rmion/fyenroll/secp256k1"
)

// EnvPrefix prefixes environment overrides, e.g. FROST_THRESHOLD.
const EnvPrefix = "FROST"

const (
	DefaultThreshold     = 2
	DefaultParticipants  = 3
	DefaultSecurityLevel = 256
	DefaultRoundTimeout  = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultCurve         = CurveBJJ

	MinThreshold     = 1
	MaxParticipants  = 100
	MinSecurityLevel = 128
)

// Supported curves.
const (
	CurveBJJ       = "bjj"
	CurveSecp256k1 = "secp256k1"
)

var ErrInvalid = errors.New("config: invalid configuration")

// Config is the resolved enrollment configuration.
type Config struct {
	Threshold          int           `mapstructure:"threshold"`
	Participants       int           `mapstructure:"participants"`
	SecurityLevel      int           `mapstructure:"security_level"`
	EnableShareBackup  bool          `mapstructure:"enable_share_backup"`
	EnableVerification bool          `mapstructure:"enable_verification"`
	RoundTimeout       time.Duration `mapstructure:"round_timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	Curve              string        `mapstructure:"curve"`
	BackupDir          string        `mapstructure:"backup_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Threshold:          DefaultThreshold,
		Participants:       DefaultParticipants,
		SecurityLevel:      DefaultSecurityLevel,
		EnableShareBackup:  true,
		EnableVerification: true,
		RoundTimeout:       DefaultRoundTimeout,
		MaxAttempts:        DefaultMaxAttempts,
		Curve:              DefaultCurve,
		BackupDir:          "shares",
	}
}

// SetDefaults registers the defaults on v and enables FROST_ environment
// overrides.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("threshold", d.Threshold)
	v.SetDefault("participants", d.Participants)
	v.SetDefault("security_level", d.SecurityLevel)
	v.SetDefault("enable_share_backup", d.EnableShareBackup)
	v.SetDefault("enable_verification", d.EnableVerification)
	v.SetDefault("round_timeout", d.RoundTimeout)
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("curve", d.Curve)
	v.SetDefault("backup_dir", d.BackupDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "decode configuration")
	}
	c.Curve = strings.ToLower(strings.TrimSpace(c.Curve))
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Threshold < MinThreshold:
		return errors.Wrapf(ErrInvalid, "threshold %d below %d", c.Threshold, MinThreshold)
	case c.Threshold > c.Participants:
		return errors.Wrapf(ErrInvalid, "threshold %d exceeds participants %d", c.Threshold, c.Participants)
	case c.Participants > MaxParticipants:
		return errors.Wrapf(ErrInvalid, "participants %d exceeds %d", c.Participants, MaxParticipants)
	case c.SecurityLevel < MinSecurityLevel:
		return errors.Wrapf(ErrInvalid, "security level %d below %d bits", c.SecurityLevel, MinSecurityLevel)
	case c.RoundTimeout <= 0:
		return errors.Wrap(ErrInvalid, "round timeout must be positive")
	case c.MaxAttempts < 1:
		return errors.Wrap(ErrInvalid, "max attempts must be at least 1")
	case c.EnableShareBackup && c.BackupDir == "":
		return errors.Wrap(ErrInvalid, "share backup needs a backup directory")
	}
	if _, err := c.Group(); err != nil {
		return err
	}
	return nil
}

// Group returns the prime-order group named by Curve.
func (c Config) Group() (group.Group, error) {
	switch c.Curve {
	case CurveBJJ:
		return &bjj.BJJ{}, nil
	case CurveSecp256k1:
		return &secp256k1.Curve{}, nil
	default:
		return nil, errors.Wrapf(ErrInvalid, "unknown curve %q", c.Curve)
	}
}

// Coordinator returns the coordinator parameters for the current group.
func (c Config) Coordinator() coordinator.Config {
	return coordinator.Config{
		Threshold:    c.Threshold,
		Participants: c.Participants,
		RoundTimeout: c.RoundTimeout,
		MaxAttempts:  c.MaxAttempts,
		Verify:       c.EnableVerification,

		MaxParticipants: MaxParticipants,
	}
}

// Settings returns the configuration as a flat key/value map.
func (c Config) Settings() map[string]any {
	return map[string]any{
		"threshold":           c.Threshold,
		"participants":        c.Participants,
		"security_level":      c.SecurityLevel,
		"enable_share_backup": c.EnableShareBackup,
		"enable_verification": c.EnableVerification,
		"round_timeout":       c.RoundTimeout.String(),
		"max_attempts":        c.MaxAttempts,
		"curve":               c.Curve,
		"backup_dir":          c.BackupDir,
	}
}

// RecommendedThreshold is a simple majority of n.
func RecommendedThreshold(n int) int {
	return n/2 + 1
}

// ValidIndex reports whether i is a share index of an n-party group.
func ValidIndex(i, n int) bool {
	return i >= 1 && i <= n
}

// EnrollmentAllowed reports whether a group of current parties with
// threshold t can enroll one more.
func EnrollmentAllowed(current, t int) bool {
	return current >= t && current < MaxParticipants
}

// Sample is a documented configuration file with the defaults.
const Sample = `# fyenroll configuration
# Environment variables with the FROST_ prefix override these values,
# e.g. FROST_THRESHOLD=3. Command-line flags override both.

# Signing threshold t and current number of share-holders n.
threshold: 2
participants: 3

# Minimum security level in bits.
security_level: 256

# Curve: bjj or secp256k1
curve: bjj

# Check each new share against the holders' public shares.
enable_verification: true

# Write an encrypted backup of each enrolled share.
enable_share_backup: true
backup_dir: shares

# Per-round deadline and sessions per enrollment.
round_timeout: 30s
max_attempts: 3
`
