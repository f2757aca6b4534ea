package funders

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query is a nested filter object serialized the way the Funders backend
// expects: nested keys joined with dots and array values joined with commas.
//
//	Query{"where": Query{"chatId": id, "removedAt": Query{"equals": nil}}}
//	→ where.chatId=<id>&where.removedAt.equals=null
type Query map[string]any

// Encode flattens the query into URL values. Keys are emitted in sorted
// order so encoded queries are deterministic.
func (q Query) Encode() string {
	if len(q) == 0 {
		return ""
	}
	values := url.Values{}
	flattenQuery("", q, values)
	return sortedEncode(values)
}

func flattenQuery(prefix string, q Query, values url.Values) {
	for key, value := range q {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch v := value.(type) {
		case Query:
			flattenQuery(name, v, values)
		case map[string]any:
			flattenQuery(name, Query(v), values)
		default:
			values.Set(name, queryScalar(value))
		}
	}
}

func queryScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = queryScalar(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedEncode(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
