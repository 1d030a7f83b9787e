package vault

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// SplitFrontMatter separates the attribute block from the body. The block
// opens with a first line of exactly "---" and closes at the next such line.
func SplitFrontMatter(content string) (block, body string, ok bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != delimiter {
		return "", content, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == delimiter {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", content, false
}

// ParseFrontMatter decodes the attribute block of content. Notes without a
// block yield an empty map.
func ParseFrontMatter(content string) (map[string]any, string, error) {
	block, body, ok := SplitFrontMatter(content)
	data := map[string]any{}
	if !ok {
		return data, body, nil
	}
	if err := yaml.Unmarshal([]byte(block), &data); err != nil {
		return nil, body, fmt.Errorf("invalid front-matter: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, body, nil
}

// ReplaceFrontMatter rewrites the attribute block of content with data,
// keeping the body trimmed of surrounding whitespace. Values are written in
// their native string form without quoting, so a value containing a newline
// or "---" corrupts the block.
func ReplaceFrontMatter(content string, data map[string]any) string {
	_, body, _ := SplitFrontMatter(content)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(delimiter + "\n")
	for _, k := range keys {
		b.WriteString(k + ": " + formatValue(data[k]) + "\n")
	}
	b.WriteString(delimiter + "\n")
	if body = strings.TrimSpace(body); body != "" {
		b.WriteString("\n" + body + "\n")
	}
	return b.String()
}

// StripAttributeLine removes every "key: value" line of the attribute block
// that matches exactly. It reports whether anything was removed.
func StripAttributeLine(content, key, value string) (string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\r") != delimiter {
		return content, false
	}
	target := key + ": " + value
	out := make([]string, 0, len(lines))
	out = append(out, lines[0])
	removed := false
	inBlock := true
	for _, line := range lines[1:] {
		trimmed := strings.TrimRight(line, "\r")
		if inBlock && trimmed == delimiter {
			inBlock = false
		} else if inBlock && strings.TrimSpace(trimmed) == target {
			removed = true
			continue
		}
		out = append(out, line)
	}
	if !removed {
		return content, false
	}
	return strings.Join(out, "\n"), true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []any:
		if scalars(t) {
			parts := make([]string, len(t))
			for i, e := range t {
				parts[i] = scalar(e)
			}
			return "[" + strings.Join(parts, ", ") + "]"
		}
		return jsonValue(t)
	case []string:
		return "[" + strings.Join(t, ", ") + "]"
	case map[string]any:
		return jsonValue(t)
	default:
		return scalar(t)
	}
}

// scalar renders one value in its native string form.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func scalars(list []any) bool {
	for _, e := range list {
		switch e.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func jsonValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
