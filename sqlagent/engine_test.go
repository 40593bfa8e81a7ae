package sqlagent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhdandz/TSBot/llm"
)

// scriptLLM replays canned completions in order and records prompts.
type scriptLLM struct {
	responses []string
	jsonBody  string
	calls     int
	prompts   []string
}

func (s *scriptLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	s.prompts = append(s.prompts, req.Prompt)
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func (s *scriptLLM) GenerateJSON(_ context.Context, _ llm.Request, out any) error {
	return llm.DecodeLoose(s.jsonBody, out)
}

func (s *scriptLLM) Model() string { return "script" }
func (s *scriptLLM) Close() error  { return nil }

// fakeDB returns queued errors first, then canned rows.
type fakeDB struct {
	rows []map[string]any
	errs []error
	sqls []string
}

func (f *fakeDB) Query(_ context.Context, sql string) ([]map[string]any, []string, error) {
	f.sqls = append(f.sqls, sql)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, nil, err
		}
	}
	return f.rows, nil, nil
}

func hvktqsRows() []map[string]any {
	return []map[string]any{
		scoreRow(2024, "Học viện Kỹ thuật Quân sự", "Công nghệ thông tin", "A00", 26.5, 50),
	}
}

func TestAnswerHappyPath(t *testing.T) {
	gen := &scriptLLM{responses: []string{
		"```sql\nSELECT nam, ten_truong, ten_nganh, ma_khoi, diem_chuan, chi_tieu FROM view_tra_cuu_diem WHERE ten_khong_dau ILIKE '%hoc vien ky thuat quan su%' AND nam = 2024 ORDER BY ten_nganh, ma_khoi\n```",
		"Năm 2024 Học viện Kỹ thuật Quân sự lấy điểm chuẩn 26.5.",
	}}
	db := &fakeDB{rows: hvktqsRows()}
	e := NewEngine(Config{}, db, nil, nil, gen, nil)

	res, err := e.Answer(context.Background(), "Điểm chuẩn Học viện Kỹ thuật Quân sự năm 2024")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.Failed())
	assert.Contains(t, res.SQL, "ten_khong_dau ILIKE '%hoc vien ky thuat quan su%'")
	assert.Contains(t, res.SQL, "nam = 2024")
	assert.NotContains(t, res.SQL, "ma_khoi =")
	assert.True(t, strings.HasSuffix(res.SQL, "LIMIT 50;"), res.SQL)

	// Answer is intro + blank line + deterministic table
	parts := strings.SplitN(res.Answer, "\n\n", 2)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "26.5")
	assert.True(t, strings.HasPrefix(parts[1], "| Năm |"), parts[1])
}

func TestAnswerEnforcesExtractedGender(t *testing.T) {
	gen := &scriptLLM{responses: []string{
		"SELECT nam, ten_truong, diem_chuan FROM view_tra_cuu_diem WHERE ten_khong_dau ILIKE '%hoc vien ky thuat quan su%' AND gioi_tinh = 'Nữ' ORDER BY nam ASC",
		"Điểm chuẩn nữ qua các năm.",
	}}
	db := &fakeDB{rows: hvktqsRows()}
	e := NewEngine(Config{}, db, nil, nil, gen, nil)

	res, err := e.Answer(context.Background(), "Điểm chuẩn nữ Học viện Kỹ thuật Quân sự qua các năm")
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "gioi_tinh = 'nu'")
	assert.NotContains(t, res.SQL, "'Nữ'")
	assert.Equal(t, "nu", res.Entities.Gender)
}

func TestAnswerRetriesAfterUnsafeSQL(t *testing.T) {
	gen := &scriptLLM{responses: []string{
		"SELECT * FROM view_tra_cuu_diem; DROP TABLE truong",
		"SELECT nam, diem_chuan FROM view_tra_cuu_diem WHERE nam = 2024",
		"Kết quả năm 2024.",
	}}
	db := &fakeDB{rows: hvktqsRows()}
	e := NewEngine(Config{}, db, nil, nil, gen, nil)

	res, err := e.Answer(context.Background(), "Điểm chuẩn năm 2024")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.NotContains(t, res.SQL, "DROP")

	// The second generation prompt carries the error history.
	require.GreaterOrEqual(t, len(gen.prompts), 2)
	assert.Contains(t, gen.prompts[1], "Các lỗi trước đó cần tránh")
}

type countObserver struct {
	retries         int
	validationFails int
}

func (c *countObserver) RecordSQLRetry()             { c.retries++ }
func (c *countObserver) RecordSQLValidationFailure() { c.validationFails++ }

func TestObserverCountsRetriesAndValidationFailures(t *testing.T) {
	gen := &scriptLLM{responses: []string{
		"SELECT * FROM view_tra_cuu_diem; DROP TABLE truong",
		"SELECT nam, diem_chuan FROM view_tra_cuu_diem WHERE nam = 2024",
		"Kết quả năm 2024.",
	}}
	e := NewEngine(Config{}, &fakeDB{rows: hvktqsRows()}, nil, nil, gen, nil)
	obs := &countObserver{}
	e.SetObserver(obs)

	res, err := e.Answer(context.Background(), "Điểm chuẩn năm 2024")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, obs.retries)
	assert.Equal(t, 1, obs.validationFails)
}

func TestAnswerRetriesAfterExecutionError(t *testing.T) {
	gen := &scriptLLM{responses: []string{
		"SELECT nam FROM view_tra_cuu_diem WHERE nam = 2024",
		"SELECT nam, diem_chuan FROM view_tra_cuu_diem WHERE nam = 2024",
		"Kết quả.",
	}}
	db := &fakeDB{rows: hvktqsRows(), errs: []error{fmt.Errorf(`column "x" does not exist`)}}
	e := NewEngine(Config{}, db, nil, nil, gen, nil)

	res, err := e.Answer(context.Background(), "Điểm chuẩn năm 2024")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, db.sqls, 2)
}

func TestAnswerFailsAfterMaxRetries(t *testing.T) {
	gen := &scriptLLM{responses: []string{"TRUNCATE truong"}}
	e := NewEngine(Config{}, &fakeDB{}, nil, nil, gen, nil)

	res, err := e.Answer(context.Background(), "Điểm chuẩn năm 2024")
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, failureAnswer, res.Answer)
	assert.Equal(t, 3, res.Attempts)
	assert.NotEmpty(t, res.Err)
}

func TestAnswerGraderRejectionRetries(t *testing.T) {
	gen := &scriptLLM{responses: []string{"SELECT nam FROM view_tra_cuu_diem"}}
	grader := &scriptLLM{jsonBody: `{"valid": false, "error": "thiếu LIMIT"}`}
	e := NewEngine(Config{}, &fakeDB{}, nil, nil, gen, grader)

	res, err := e.Answer(context.Background(), "Điểm chuẩn năm 2024")
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "thiếu LIMIT")
}

func TestAnswerEmptyRows(t *testing.T) {
	gen := &scriptLLM{responses: []string{"SELECT nam FROM view_tra_cuu_diem WHERE nam = 1999"}}
	e := NewEngine(Config{}, &fakeDB{rows: []map[string]any{}}, nil, nil, gen, nil)

	res, err := e.Answer(context.Background(), "Điểm chuẩn năm 1999")
	require.NoError(t, err)
	assert.Equal(t, noDataAnswer, res.Answer)
	assert.False(t, res.Failed())
}

func TestFewShotFallbackWithoutVectors(t *testing.T) {
	e := NewEngine(Config{}, &fakeDB{}, nil, nil, &scriptLLM{responses: []string{""}}, nil)
	examples := e.fewShotExamples(context.Background(), "điểm chuẩn 2024")
	assert.Len(t, examples, 5)
	for _, ex := range examples {
		assert.NotEmpty(t, ex.Question)
		assert.Contains(t, ex.SQL, "view_tra_cuu_diem")
	}
}
