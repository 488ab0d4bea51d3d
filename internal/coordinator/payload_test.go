package coordinator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwidget/internal/settings"
)

func TestFullRefresh_CarriesEveryKey(t *testing.T) {
	s := settings.Default()
	s.ChartLine = -1
	p := NewFullRefresh(s, nil, nil, nil)

	assert.Equal(t, []string{
		"chartdata", "chartfill", "chartline", "chartoffset", "chartperiod", "chartsmooth",
		"pricefont", "pricetext", "stockfont", "stocktext",
		"trendfont", "trendnegative", "trendpositive", "trendtext",
	}, keys(p))

	data, err := json.Marshal(p)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, []any{}, m["chartdata"], "empty series encodes as []")
	assert.Nil(t, m["pricetext"])
	assert.Equal(t, "", m["chartline"], "transparent color")
	assert.Equal(t, "1 D", m["chartperiod"])
}

func TestFullRefresh_ZeroValueMarshalsEmptySeries(t *testing.T) {
	data, err := json.Marshal(FullRefresh{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"chartdata":[]`)
}

func TestPartialRefresh_OnlyBuiltFields(t *testing.T) {
	price := "12.00"
	series := SeriesRefresh(nil, &price)
	data, err := json.Marshal(series)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chartdata":[],"pricetext":"12.00"}`, string(data))

	trend := TrendRefresh(nil)
	data, err = json.Marshal(trend)
	require.NoError(t, err)
	assert.JSONEq(t, `{"trendtext":null}`, string(data))

	assert.Equal(t, KindPartial, trend.Kind())
	assert.Equal(t, KindFull, FullRefresh{}.Kind())
}
