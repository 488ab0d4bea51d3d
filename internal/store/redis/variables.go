package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"stockwidget/internal/model"
)

// Hash fields of a variable key.
const (
	fieldValue     = "value"
	fieldFormatted = "formatted"
	fieldSuffix    = "suffix"
	fieldUpdated   = "updated"
)

// Variables is the host platform's variable directory, one hash per variable.
type Variables struct {
	rdb *goredis.Client
}

// NewVariables creates a Variables directory.
func NewVariables(rdb *goredis.Client) *Variables {
	return &Variables{rdb: rdb}
}

// Exists reports whether source names a known variable.
func (v *Variables) Exists(ctx context.Context, source string) (bool, error) {
	if source == "" {
		return false, nil
	}
	n, err := v.rdb.Exists(ctx, variableKey(source)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", source, err)
	}
	return n > 0, nil
}

// Formatted returns the display text of the variable. A stored formatted
// text wins; otherwise the raw value is rendered with two decimals and the
// stored suffix.
func (v *Variables) Formatted(ctx context.Context, source string) (string, bool, error) {
	if source == "" {
		return "", false, nil
	}
	h, err := v.rdb.HGetAll(ctx, variableKey(source)).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis hgetall %s: %w", source, err)
	}
	if len(h) == 0 {
		return "", false, nil
	}
	if text, ok := h[fieldFormatted]; ok && text != "" {
		return text, true, nil
	}
	raw, ok := h[fieldValue]
	if !ok {
		return "", true, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, true, nil
	}
	return model.FormatValue(f, 2, h[fieldSuffix]), true, nil
}

// Set stores the current value of source. The formatted text is derived
// from value and suffix.
func (v *Variables) Set(ctx context.Context, source string, value float64, suffix string, ts time.Time) error {
	err := v.rdb.HSet(ctx, variableKey(source),
		fieldValue, strconv.FormatFloat(value, 'f', -1, 64),
		fieldFormatted, model.FormatValue(value, 2, suffix),
		fieldSuffix, suffix,
		fieldUpdated, ts.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", source, err)
	}
	return nil
}

// Value returns the raw current value of source.
func (v *Variables) Value(ctx context.Context, source string) (float64, bool, error) {
	raw, err := v.rdb.HGet(ctx, variableKey(source), fieldValue).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis hget %s: %w", source, err)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse value of %s: %w", source, err)
	}
	return f, true, nil
}
