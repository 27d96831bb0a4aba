package application

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// importField is an attendee attribute a spreadsheet column can map to.
type importField int

const (
	fieldName importField = iota
	fieldTicketID
	fieldEmail
)

// headerAliases lists, per field, the accepted header spellings in priority
// order. Spellings are given in normalized form (see normalizeHeader).
var headerAliases = map[importField][]string{
	fieldName:     {"name", "full name", "attendee name", "attendee"},
	fieldTicketID: {"ticket id", "ticketid", "ticket", "ticket no", "ticket number", "id", "attendee id"},
	fieldEmail:    {"email", "e mail", "email address", "mail"},
}

type aliasMatch struct {
	field importField
	rank  int
}

// aliasIndex maps a normalized header to its field and priority.
var aliasIndex = func() map[string]aliasMatch {
	idx := make(map[string]aliasMatch)
	for field, spellings := range headerAliases {
		for rank, s := range spellings {
			idx[s] = aliasMatch{field: field, rank: rank}
		}
	}
	return idx
}()

// normalizeHeader case-folds a header, treats underscores and hyphens as
// spaces and collapses runs of whitespace.
func normalizeHeader(h string) string {
	h = strings.ToLower(h)
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// headerResolver caches header resolution for the duration of one import.
type headerResolver struct {
	cache map[string]*aliasMatch
}

func newHeaderResolver() *headerResolver {
	return &headerResolver{cache: make(map[string]*aliasMatch)}
}

func (r *headerResolver) resolve(header string) (aliasMatch, bool) {
	m, seen := r.cache[header]
	if !seen {
		if found, ok := aliasIndex[normalizeHeader(header)]; ok {
			m = &found
		}
		r.cache[header] = m
	}
	if m == nil {
		return aliasMatch{}, false
	}
	return *m, true
}

// extract picks, per field, the non-empty value under the highest-priority
// alias present in row.
func (r *headerResolver) extract(row map[string]any) map[importField]string {
	type candidate struct {
		rank  int
		value string
	}
	best := make(map[importField]candidate, len(headerAliases))

	for header, raw := range row {
		m, ok := r.resolve(header)
		if !ok {
			continue
		}
		v := cellString(raw)
		if v == "" {
			continue
		}
		if cur, ok := best[m.field]; !ok || m.rank < cur.rank {
			best[m.field] = candidate{rank: m.rank, value: v}
		}
	}

	out := make(map[importField]string, len(best))
	for f, c := range best {
		out[f] = c.value
	}
	return out
}

// cellString renders a loosely-typed spreadsheet value as trimmed text.
// Integral floats lose their decimals so that 1001.0 reads as "1001".
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := x.Float64(); err == nil {
			return formatFloat(f)
		}
		return strings.TrimSpace(x.String())
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
