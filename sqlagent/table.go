package sqlagent

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type column struct {
	key    string
	header string
}

// tableColumns fixes the rendering order. Columns with no value in any
// row are omitted from the output.
var tableColumns = []column{
	{"nam", "Năm"},
	{"ten_truong", "Trường"},
	{"ten_nganh", "Ngành"},
	{"ma_khoi", "Khối"},
	{"gioi_tinh", "Giới tính"},
	{"khu_vuc", "Khu vực"},
	{"diem_chuan", "Điểm chuẩn"},
	{"chi_tieu", "Chỉ tiêu"},
	{"ghi_chu", "Ghi chú"},
}

type tableGroup struct {
	values map[string]string
	khois  []string
}

// BuildMarkdownTable renders query rows as a markdown table. Rows that
// differ only in ma_khoi collapse into one line with the group codes
// joined by ", ". Groups and codes are sorted, so any ordering of the
// same row set renders byte-identical output.
func BuildMarkdownTable(rows []map[string]any) string {
	if len(rows) == 0 {
		return ""
	}

	groups := make(map[string]*tableGroup)
	for _, row := range rows {
		values := make(map[string]string, len(tableColumns))
		for _, col := range tableColumns {
			values[col.key] = formatValue(row[col.key])
		}

		keyParts := make([]string, 0, len(tableColumns)-1)
		for _, col := range tableColumns {
			if col.key == "ma_khoi" {
				continue
			}
			keyParts = append(keyParts, values[col.key])
		}
		key := strings.Join(keyParts, "\x1f")

		g, ok := groups[key]
		if !ok {
			g = &tableGroup{values: values}
			groups[key] = g
		}
		if khoi := values["ma_khoi"]; khoi != "" && !containsString(g.khois, khoi) {
			g.khois = append(g.khois, khoi)
		}
	}

	ordered := make([]*tableGroup, 0, len(groups))
	for _, g := range groups {
		sort.Strings(g.khois)
		g.values["ma_khoi"] = strings.Join(g.khois, ", ")
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		for _, col := range tableColumns {
			a, b := ordered[i].values[col.key], ordered[j].values[col.key]
			if a == b {
				continue
			}
			if af, aok := parseNumber(a); aok {
				if bf, bok := parseNumber(b); bok {
					return af < bf
				}
			}
			return a < b
		}
		return false
	})

	active := make([]column, 0, len(tableColumns))
	for _, col := range tableColumns {
		for _, g := range ordered {
			if g.values[col.key] != "" {
				active = append(active, col)
				break
			}
		}
	}
	if len(active) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("|")
	for _, col := range active {
		b.WriteString(" " + col.header + " |")
	}
	b.WriteString("\n|")
	for range active {
		b.WriteString("---|")
	}
	for _, g := range ordered {
		b.WriteString("\n|")
		for _, col := range active {
			b.WriteString(" " + g.values[col.key] + " |")
		}
	}
	return b.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
