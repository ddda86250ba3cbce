package request

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Fingerprint identifies the shape of a document independent of formatting
// and of the cursor, so that repeated pages of one query share it.
func (d Document) Fingerprint() string {
	filter := compactJSON(d.Filter)
	sorting := make([]string, 0, len(d.Sorting))
	for _, entry := range d.Sorting {
		path, _ := json.Marshal(entry.Path)
		sorting = append(sorting, fmt.Sprintf("%s %s %s", path, entry.Ordering, entry.Nulls))
	}
	axes := "default"
	if d.TemporalAxes != nil {
		if encoded, err := json.Marshal(d.TemporalAxes); err == nil {
			axes = string(encoded)
		}
	}
	parts := append([]string{filter, axes, strconv.FormatBool(d.IncludeDrafts)}, sorting...)
	return framedSHA256(parts...)
}

func compactJSON(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func framedSHA256(parts ...string) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
