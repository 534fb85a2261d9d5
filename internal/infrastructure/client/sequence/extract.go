package sequence

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

// numberKeys are the normalized field names that may carry the formatted
// number, in priority order.
var numberKeys = []string{
	"formatted",
	"formattednumber",
	"nextnumber",
	"number",
	"preview",
	"value",
}

// ExtractFormatted pulls the formatted number out of any supported preview
// response envelope:
//
//	"SO202512-00001"
//	{"formatted": "SO202512-00001"}
//	{"NextNumber": "SO202512-00001"}
//	{"data": "SO202512-00001"}
//	{"data": {"next_number": "SO202512-00001"}}
//
// Anything else yields "". This is the only place that tolerates shape ambiguity.
func ExtractFormatted(body []byte) string {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}

	switch v := doc.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if s := lookupNumber(v); s != "" {
			return s
		}
		for _, nested := range matching(v, "data") {
			switch d := nested.(type) {
			case string:
				return strings.TrimSpace(d)
			case map[string]any:
				return lookupNumber(d)
			}
		}
	}
	return ""
}

func lookupNumber(m map[string]any) string {
	for _, key := range numberKeys {
		for _, v := range matching(m, key) {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// matching returns the values whose key normalizes to want: an exact key
// first, then the other spellings in sorted key order.
func matching(m map[string]any, want string) []any {
	var out []any
	if v, ok := m[want]; ok {
		out = append(out, v)
	}
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if k != want && normalizeKey(k) == want {
			out = append(out, m[k])
		}
	}
	return out
}

// normalizeKey folds case and drops separators: "Next_Number" -> "nextnumber".
func normalizeKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "").Replace(k)
}
