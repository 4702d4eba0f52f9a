package segment

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrConfig is returned for segmentation thresholds that are out of order.
// Invalid values are never clamped.
var ErrConfig = errors.New("invalid segmentation config")

// Config holds the six numeric segmentation parameters.
type Config struct {
	// MinLength is the smallest unit emitted on its own; shorter fragments
	// are merged into a neighbour.
	MinLength int `mapstructure:"min_length" json:"min_length"`
	// TargetSize is the size sentence grouping aims for.
	TargetSize int `mapstructure:"target_size" json:"target_size"`
	// MaxParagraphSize is the hard ceiling for a unit.
	MaxParagraphSize int `mapstructure:"max_paragraph_size" json:"max_paragraph_size"`
	// SubstantialThreshold is the accumulated size required before a unit
	// may be cut at a secondary boundary (sentence end, line start).
	SubstantialThreshold int `mapstructure:"substantial_threshold" json:"substantial_threshold"`
	// FallbackFill is the share of MaxParagraphSize packed per unit by the
	// word-boundary fallback.
	FallbackFill float64 `mapstructure:"fallback_fill" json:"fallback_fill"`
	// AlertThreshold is the over-segmentation rate (0..1) above which a run
	// is flagged by the quality report.
	AlertThreshold float64 `mapstructure:"alert_threshold" json:"alert_threshold"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MinLength:            100,
		TargetSize:           1000,
		MaxParagraphSize:     2000,
		SubstantialThreshold: 800,
		FallbackFill:         0.75,
		AlertThreshold:       0.30,
	}
}

// Validate checks that MinLength ≤ TargetSize ≤ MaxParagraphSize and that the
// remaining parameters are in range.
func (c Config) Validate() error {
	switch {
	case c.MinLength <= 0:
		return fmt.Errorf("%w: min_length must be positive, got %d", ErrConfig, c.MinLength)
	case c.MinLength > c.TargetSize:
		return fmt.Errorf("%w: min_length %d exceeds target_size %d", ErrConfig, c.MinLength, c.TargetSize)
	case c.TargetSize > c.MaxParagraphSize:
		return fmt.Errorf("%w: target_size %d exceeds max_paragraph_size %d", ErrConfig, c.TargetSize, c.MaxParagraphSize)
	case c.SubstantialThreshold <= 0 || c.SubstantialThreshold > c.MaxParagraphSize:
		return fmt.Errorf("%w: substantial_threshold %d must be in (0, %d]", ErrConfig, c.SubstantialThreshold, c.MaxParagraphSize)
	case c.FallbackFill <= 0 || c.FallbackFill > 1:
		return fmt.Errorf("%w: fallback_fill %.2f must be in (0, 1]", ErrConfig, c.FallbackFill)
	case c.AlertThreshold < 0 || c.AlertThreshold > 1:
		return fmt.Errorf("%w: alert_threshold %.2f must be in [0, 1]", ErrConfig, c.AlertThreshold)
	}
	return nil
}

// Hash returns a stable digest of the parameters. Two configs with the same
// hash always segment a text identically.
func (c Config) Hash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("min=%d;target=%d;max=%d;substantial=%d;fill=%.4f;alert=%.4f",
		c.MinLength, c.TargetSize, c.MaxParagraphSize, c.SubstantialThreshold, c.FallbackFill, c.AlertThreshold)))
	return hex.EncodeToString(sum[:8])
}

// fallbackLimit is the packing size used by the word-boundary fallback.
func (c Config) fallbackLimit() int {
	limit := int(float64(c.MaxParagraphSize) * c.FallbackFill)
	if limit < 1 {
		limit = 1
	}
	return limit
}
