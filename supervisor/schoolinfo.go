package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/llm"
	"github.com/nhdandz/TSBot/vietnamese"
)

// SchoolDirectory exposes the truong and nganh tables.
// *databases.Postgres satisfies it.
type SchoolDirectory interface {
	ActiveSchools(ctx context.Context) ([]databases.School, error)
	MajorsBySchool(ctx context.Context, schoolID int64) ([]databases.Major, error)
}

// upperRunRe matches two adjacent uppercase runs, so "HV KTQS" collapses
// to "HVKTQS" before abbreviation expansion.
var upperRunRe = regexp.MustCompile(`([A-Z]+)\s+([A-Z]+)`)

func collapseAbbreviation(query string) string {
	for upperRunRe.MatchString(query) {
		query = upperRunRe.ReplaceAllString(query, "$1$2")
	}
	return query
}

// schoolInfoNode matches the query against the school directory and
// narrates the winning record. It leaves the state untouched on any
// failure; afterSchoolInfo then falls through to RAG.
func (s *Supervisor) schoolInfoNode(ctx context.Context, st *state) {
	if s.schools == nil {
		return
	}

	expanded := vietnamese.ExpandAbbreviations(collapseAbbreviation(st.query))
	normalized := vietnamese.Normalize(expanded)

	schools, err := s.schools.ActiveSchools(ctx)
	if err != nil {
		slog.Warn("Failed to load schools", "error", err)
		return
	}

	type candidate struct {
		school databases.School
		tenKD  string
	}
	candidates := make([]candidate, 0, len(schools))
	for _, school := range schools {
		tenKD := strings.ToLower(strings.TrimSpace(school.TenKhongDau))
		if tenKD == "" {
			tenKD = vietnamese.Normalize(school.TenTruong)
		}
		candidates = append(candidates, candidate{school: school, tenKD: tenKD})
	}
	// Longest name first so "hoc vien ky thuat quan su" beats "hoc vien".
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].tenKD) > len(candidates[j].tenKD)
	})

	var match *databases.School
	for i := range candidates {
		if candidates[i].tenKD != "" && strings.Contains(normalized, candidates[i].tenKD) {
			match = &candidates[i].school
			break
		}
	}
	if match == nil {
		queryLower := strings.ToLower(strings.TrimSpace(st.query))
		for i := range candidates {
			ma := strings.ToLower(candidates[i].school.MaTruong)
			if ma != "" && strings.Contains(queryLower, ma) {
				match = &candidates[i].school
				break
			}
		}
	}
	if match == nil {
		slog.Info("No school matched", "query", normalized)
		return
	}

	majors, err := s.schools.MajorsBySchool(ctx, match.ID)
	if err != nil {
		slog.Warn("Failed to load majors", "school", match.TenTruong, "error", err)
		return
	}
	majorList := "Chưa có thông tin"
	if len(majors) > 0 {
		parts := make([]string, len(majors))
		for i, m := range majors {
			parts[i] = fmt.Sprintf("%s (%s)", m.TenNganh, m.MaNganh)
		}
		majorList = strings.Join(parts, ", ")
	}

	response, err := s.generator.Generate(ctx, llm.Request{
		Prompt: fmt.Sprintf(schoolInfoPrompt,
			match.TenTruong,
			orDefault(match.MoTa, "Chưa có mô tả"),
			orDefault(match.DiaChi, "Chưa có thông tin"),
			orDefault(match.Website, "Chưa có thông tin"),
			majorList,
			st.query),
	})
	if err != nil {
		slog.Warn("School intro generation failed", "school", match.TenTruong, "error", err)
		return
	}

	st.response = response
	st.sources = append(st.sources, Source{Type: "database", Table: "truong", School: match.TenTruong})
	slog.Info("School info generated", "school", match.TenTruong)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
