package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// parseCurrency reads amounts like "$1,200,000.00". Empty or unparseable input yields nil.
func parseCurrency(s string) *float64 {
	clean := strings.NewReplacer("$", "", ",", "", " ", "", "USD", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return nil
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// looseString accepts a JSON string, number or null.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = looseString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects and arrays carry nothing usable here.
		*l = ""
		return nil
	}
	*l = looseString(n.String())
	return nil
}
