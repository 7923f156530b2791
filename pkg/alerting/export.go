package alerting

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"pharmacy-stock-alerts/pkg/common"
)

// csvHeader is the exact column order downstream consumers depend on.
var csvHeader = []string{"code", "name", "status", "current_stock", "critical_threshold", "low_threshold", "value"}

// exportCSV writes the full filtered view (no pagination) as CSV.
func (e *Engine) exportCSV(tenantID string, filter QueryFilter) ([]byte, error) {
	views, err := e.filteredViews(tenantID, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	rows := common.Mapper(views, func(v AlertProductView) []string {
		return []string{
			v.Code,
			v.Name,
			string(v.Status),
			strconv.FormatFloat(v.CurrentQuantity, 'f', 2, 64),
			strconv.FormatFloat(v.CriticalThreshold, 'f', 2, 64),
			strconv.FormatFloat(v.LowThreshold, 'f', 2, 64),
			strconv.FormatFloat(v.Value, 'f', 2, 64),
		}
	})
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
