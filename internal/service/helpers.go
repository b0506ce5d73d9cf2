package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/arxiv-daily/internal/types"
)

// now is replaced in tests
var now = time.Now

func today() string {
	return now().Format(types.DateLayout)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// cleanStrings trims values and drops empties, keeping first occurrences
func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ParseIDs keeps the values that are plain non-negative integers
func ParseIDs(values []string) []int64 {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.TrimLeft(v, "0123456789") != "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// keepOwned returns the ids present in owned, in their original order
func keepOwned(ids []int64, owned map[int64]bool) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if owned[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// keepAllowed returns the values present in allowed, in their original order
func keepAllowed(values []string, allowed []string) []string {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if set[v] && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
