package papers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/similarity"
)

// parseDay decodes a day file. The top level must be an array; entries that
// are not objects are skipped.
func parseDay(data []byte) ([]models.Paper, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}

	papers := make([]models.Paper, 0, len(items))
	for _, item := range items {
		raw, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		papers = append(papers, Normalize(raw))
	}
	return papers, nil
}

// Normalize converts a loosely typed paper record into a Paper
func Normalize(raw map[string]interface{}) models.Paper {
	id := stringify(raw["id"])
	if strings.TrimSpace(id) == "" {
		id = stringify(raw["paper_id"])
	}

	return models.Paper{
		ID:         strings.TrimSpace(id),
		TitleEN:    stringify(raw["title_en"]),
		TitleZH:    stringify(raw["title_zh"]),
		AbstractEN: stringify(raw["abstract_en"]),
		AbstractZH: stringify(raw["abstract_zh"]),
		SummaryEN:  stringify(raw["summary_en"]),
		SummaryZH:  stringify(raw["summary_zh"]),
		Comment:    stringify(raw["comment"]),
		Category:   stringify(raw["category"]),
		Tags:       ParseTags(raw["tags"]),
		ImagePath:  stringify(raw["image_path"]),
		PDFPath:    stringify(raw["pdf_path"]),
		PubDate:    stringify(raw["pub_date"]),
		CreatedAt:  stringify(raw["created_at"]),
		Embedding:  similarity.ParseEmbedding(raw["embedding"]),
	}
}

// ParseTags accepts a list, a string holding a JSON value, or a
// comma-separated string. Values are trimmed and empties dropped.
func ParseTags(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []interface{}:
		return cleanValues(v)
	case []string:
		items := make([]interface{}, len(v))
		for i, s := range v {
			items[i] = s
		}
		return cleanValues(items)
	case string:
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		var decoded interface{}
		if err := dec.Decode(&decoded); err != nil || dec.More() {
			return splitComma(v)
		}
		if decoded == nil {
			return []string{}
		}
		if list, ok := decoded.([]interface{}); ok {
			return cleanValues(list)
		}
		return cleanValues([]interface{}{decoded})
	default:
		return cleanValues([]interface{}{v})
	}
}

func splitComma(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cleanValues(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(stringify(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stringify renders scalar JSON values as text; nil becomes ""
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
