package google

import (
	"fmt"
	"strings"
)

// parseRecordKeys converts the kind and id columns (as returned by the
// Sheets API) into a set of record keys. The header row and short rows are
// skipped.
func parseRecordKeys(values [][]interface{}) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for i, row := range values {
		if len(row) < 2 {
			continue
		}
		kind := strings.TrimSpace(fmt.Sprint(row[0]))
		id := strings.TrimSpace(fmt.Sprint(row[1]))
		if i == 0 && strings.EqualFold(kind, "kind") {
			continue
		}
		if kind == "" || id == "" {
			continue
		}
		out[recordKey(kind, id)] = struct{}{}
	}
	return out
}

func recordKey(kind, id string) string {
	return kind + "/" + id
}
