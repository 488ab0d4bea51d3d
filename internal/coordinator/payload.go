package coordinator

import (
	"encoding/json"

	"stockwidget/internal/settings"
)

// Kind distinguishes full from partial payloads.
type Kind string

const (
	KindFull    Kind = "full"
	KindPartial Kind = "partial"
)

// Payload is a message for the visualization sink. It is serialized only
// at the sink boundary.
type Payload interface {
	json.Marshaler
	Kind() Kind
}

// FullRefresh replaces every display field of the tile.
type FullRefresh struct {
	StockText     string    `json:"stocktext"`
	StockFont     int       `json:"stockfont"`
	TrendText     *string   `json:"trendtext"`
	TrendFont     int       `json:"trendfont"`
	TrendPositive string    `json:"trendpositive"`
	TrendNegative string    `json:"trendnegative"`
	ChartLine     string    `json:"chartline"`
	ChartPeriod   string    `json:"chartperiod"`
	ChartSmooth   bool      `json:"chartsmooth"`
	ChartFill     bool      `json:"chartfill"`
	ChartOffset   int       `json:"chartoffset"`
	ChartData     []float64 `json:"chartdata"`
	PriceText     *string   `json:"pricetext"`
	PriceFont     int       `json:"pricefont"`
}

// NewFullRefresh assembles a full refresh from the settings snapshot and
// the current dynamic values.
func NewFullRefresh(s settings.Settings, data []float64, price, trend *string) FullRefresh {
	return FullRefresh{
		StockText:     s.StockLabel,
		StockFont:     s.StockFont,
		TrendText:     trend,
		TrendFont:     s.TrendFont,
		TrendPositive: settings.FormatColor(s.TrendPositive),
		TrendNegative: settings.FormatColor(s.TrendNegative),
		ChartLine:     settings.FormatColor(s.ChartLine),
		ChartPeriod:   settings.PeriodLabel(s.ChartDays),
		ChartSmooth:   s.ChartSmooth,
		ChartFill:     s.ChartFill,
		ChartOffset:   s.ChartOffset,
		ChartData:     nonNil(data),
		PriceText:     price,
		PriceFont:     s.PriceFont,
	}
}

func (FullRefresh) Kind() Kind { return KindFull }

// MarshalJSON encodes every field; chartdata is [] rather than null when empty.
func (f FullRefresh) MarshalJSON() ([]byte, error) {
	type plain FullRefresh
	p := plain(f)
	p.ChartData = nonNil(p.ChartData)
	return json.Marshal(p)
}

// PartialRefresh updates a subset of display fields. Only the fields it
// was built with are serialized; a nil text serializes as null.
type PartialRefresh struct {
	ChartData []float64
	PriceText *string
	TrendText *string

	series bool
	trend  bool
}

// SeriesRefresh carries the refreshed chart series and the price text.
func SeriesRefresh(data []float64, price *string) PartialRefresh {
	return PartialRefresh{ChartData: nonNil(data), PriceText: price, series: true}
}

// TrendRefresh carries only the trend text.
func TrendRefresh(trend *string) PartialRefresh {
	return PartialRefresh{TrendText: trend, trend: true}
}

func (PartialRefresh) Kind() Kind { return KindPartial }

// HasSeries reports whether chartdata and pricetext are set.
func (p PartialRefresh) HasSeries() bool { return p.series }

// HasTrend reports whether trendtext is set.
func (p PartialRefresh) HasTrend() bool { return p.trend }

func (p PartialRefresh) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 3)
	if p.series {
		m["chartdata"] = nonNil(p.ChartData)
		m["pricetext"] = p.PriceText
	}
	if p.trend {
		m["trendtext"] = p.TrendText
	}
	return json.Marshal(m)
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
