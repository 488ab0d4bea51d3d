package window

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"stockwidget/internal/model"
)

// encode renders w as the persisted blob: a JSON object mapping ISO day to
// value or null. encoding/json writes map keys sorted, so equal windows
// always produce byte-identical blobs.
func encode(w model.Window) ([]byte, error) {
	m := make(map[string]*float64, len(w))
	for _, s := range w {
		m[string(s.Day)] = s.Value
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode window: %w", err)
	}
	return data, nil
}

// decode parses a persisted blob back into a window sorted by day.
// An empty blob (or JSON null) decodes to a nil window. Anything that is not
// a day-to-number object is reported as ErrPersistenceCorrupt.
func decode(data []byte) (model.Window, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var m map[string]*float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistenceCorrupt, err)
	}
	if len(m) == 0 {
		return nil, nil
	}

	w := make(model.Window, 0, len(m))
	for k, v := range m {
		day, err := model.ParseDayKey(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrPersistenceCorrupt, err)
		}
		w = append(w, model.Sample{Day: day, Value: v})
	}

	// Map iteration order is random; day order has to be imposed explicitly.
	sort.Slice(w, func(i, j int) bool { return w[i].Day < w[j].Day })
	return w, nil
}
