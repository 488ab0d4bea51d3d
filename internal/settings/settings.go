// Package settings holds the widget configuration snapshot: which variables
// are shown, the window size and the display styling.
package settings

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"stockwidget/internal/model"
)

// Settings is one immutable configuration snapshot. It is passed by value
// into every coordinator trigger.
type Settings struct {
	// Stock label
	StockLabel string `yaml:"stock_label" json:"stock_label"`
	StockFont  int    `yaml:"stock_font" json:"stock_font"`

	// Trend
	TrendSource   string `yaml:"trend_source" json:"trend_source"`
	TrendFont     int    `yaml:"trend_font" json:"trend_font"`
	TrendPositive int    `yaml:"trend_positive" json:"trend_positive"`
	TrendNegative int    `yaml:"trend_negative" json:"trend_negative"`

	// Chart
	ChartDays   int  `yaml:"chart_days" json:"chart_days"`
	ChartLine   int  `yaml:"chart_line" json:"chart_line"`
	ChartSmooth bool `yaml:"chart_smooth" json:"chart_smooth"`
	ChartFill   bool `yaml:"chart_fill" json:"chart_fill"`
	ChartOffset int  `yaml:"chart_offset" json:"chart_offset"`

	// Price
	PriceSource string `yaml:"price_source" json:"price_source"`
	PriceFont   int    `yaml:"price_font" json:"price_font"`
}

// Default returns the settings of a freshly created widget.
func Default() Settings {
	return Settings{
		StockFont:     10,
		TrendFont:     12,
		TrendPositive: 0x00FF00,
		TrendNegative: 0xFF0000,
		ChartDays:     1,
		ChartLine:     0x11A0F3,
		ChartSmooth:   true,
		ChartFill:     true,
		PriceFont:     18,
	}
}

// periods maps the allowed window sizes to their display label.
var periods = map[int]string{
	1:   "1 D",
	7:   "1 W",
	30:  "1 M",
	90:  "1 Q",
	180: "1 H",
	356: "1 Y",
}

// PeriodLabel returns the display label of window size n, or "" if n is not
// an allowed size.
func PeriodLabel(n int) string {
	return periods[n]
}

// FormatColor renders an integer RGB color as #RRGGBB.
// Negative values mean transparent and render as "".
func FormatColor(c int) string {
	if c < 0 {
		return ""
	}
	return fmt.Sprintf("#%06X", c&0xFFFFFF)
}

// Validate checks the snapshot. Source resolution is not checked here; an
// unknown price source is a runtime condition, not a malformed snapshot.
func (s Settings) Validate() error {
	if _, ok := periods[s.ChartDays]; !ok {
		return fmt.Errorf("%w: chart_days %d (want one of 1, 7, 30, 90, 180, 356)", model.ErrConfigInvalid, s.ChartDays)
	}
	for name, font := range map[string]int{
		"stock_font": s.StockFont,
		"trend_font": s.TrendFont,
		"price_font": s.PriceFont,
	} {
		if font <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", model.ErrConfigInvalid, name, font)
		}
	}
	for name, c := range map[string]int{
		"trend_positive": s.TrendPositive,
		"trend_negative": s.TrendNegative,
		"chart_line":     s.ChartLine,
	} {
		if c > 0xFFFFFF || c < -1 {
			return fmt.Errorf("%w: %s out of range: %d", model.ErrConfigInvalid, name, c)
		}
	}
	if strings.TrimSpace(s.PriceSource) != s.PriceSource || strings.TrimSpace(s.TrendSource) != s.TrendSource {
		return fmt.Errorf("%w: source ids must not contain surrounding whitespace", model.ErrConfigInvalid)
	}
	return nil
}

// Load reads a YAML settings file. Fields missing from the file keep
// their Default values.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML settings document.
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: parse settings: %v", model.ErrConfigInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
