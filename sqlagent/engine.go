// Package sqlagent turns admission-score questions into read-only SQL
// over view_tra_cuu_diem: entity extraction, few-shot prompting, value
// fixing, safety validation, bounded execution, and a deterministic
// markdown rendering of the result set.
package sqlagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nhdandz/TSBot/databases"
	"github.com/nhdandz/TSBot/embedder"
	"github.com/nhdandz/TSBot/llm"
	"github.com/nhdandz/TSBot/vietnamese"
)

// Querier executes one read-only statement. *databases.Postgres
// satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string) ([]map[string]any, []string, error)
}

// Config tunes the engine.
type Config struct {
	Collection      string  `yaml:"collection"`
	FewShotCount    int     `yaml:"few_shot_count"`
	FewShotMinScore float64 `yaml:"few_shot_min_score"`
	MaxRetries      int     `yaml:"max_retries"`
	MaxIntroRows    int     `yaml:"max_intro_rows"`
}

// SetDefaults fills missing settings.
func (c *Config) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "sql_examples"
	}
	if c.FewShotCount <= 0 {
		c.FewShotCount = 5
	}
	if c.FewShotMinScore <= 0 {
		c.FewShotMinScore = 0.5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxIntroRows <= 0 {
		c.MaxIntroRows = 10
	}
}

// Entities are the structured values extracted from the question.
type Entities struct {
	Year       int     `json:"year,omitempty"`
	Score      float64 `json:"score,omitempty"`
	KhoiThi    string  `json:"khoi_thi,omitempty"`
	Gender     string  `json:"gender,omitempty"`
	Region     string  `json:"region,omitempty"`
	Normalized string  `json:"query_normalized"`
}

// ExtractEntities runs the Vietnamese extractors over the question.
func ExtractEntities(query string) Entities {
	e := Entities{Normalized: vietnamese.Normalize(query)}
	e.Year = vietnamese.ExtractYear(query)
	if s := vietnamese.ExtractScore(query); s >= 0 {
		e.Score = s
	}
	e.KhoiThi = vietnamese.ExtractKhoiThi(query)
	e.Gender = vietnamese.ExtractGender(query)
	e.Region = vietnamese.ExtractRegion(query)
	return e
}

// Result is the engine's outcome for one question.
type Result struct {
	Query    string           `json:"query"`
	SQL      string           `json:"sql,omitempty"`
	Rows     []map[string]any `json:"results"`
	Answer   string           `json:"answer"`
	Entities Entities         `json:"entities"`
	Attempts int              `json:"attempts"`
	Err      string           `json:"error,omitempty"`
}

// Failed reports whether every attempt was exhausted without a result.
func (r *Result) Failed() bool { return r.Err != "" }

// Observer counts retry and validation outcomes. *observability.Metrics
// satisfies it.
type Observer interface {
	RecordSQLRetry()
	RecordSQLValidationFailure()
}

// Engine is the NL-to-SQL loop. vectors and grader may be nil; few-shot
// retrieval then uses the hardcoded examples and validation stops at the
// keyword checks.
type Engine struct {
	config    Config
	db        Querier
	vectors   databases.VectorStore
	embed     embedder.Embedder
	generator llm.LLM
	grader    llm.LLM
	observer  Observer
}

// NewEngine wires the engine.
func NewEngine(cfg Config, db Querier, vectors databases.VectorStore, embed embedder.Embedder, generator, grader llm.LLM) *Engine {
	cfg.SetDefaults()
	return &Engine{
		config:    cfg,
		db:        db,
		vectors:   vectors,
		embed:     embed,
		generator: generator,
		grader:    grader,
	}
}

// SetObserver attaches the retry and validation counters.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// Answer runs the generation loop: up to MaxRetries attempts, each
// failure feeding its message back into the next prompt.
func (e *Engine) Answer(ctx context.Context, userQuery string) (*Result, error) {
	slog.Info("Processing score query", "query", userQuery)

	entities := ExtractEntities(userQuery)
	examples := e.fewShotExamples(ctx, userQuery)

	var (
		sql     string
		history []string
	)
	for attempt := 1; attempt <= e.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if attempt > 1 && e.observer != nil {
			e.observer.RecordSQLRetry()
		}

		generated, err := e.generateSQL(ctx, userQuery, examples, entities, history)
		if err != nil {
			history = append(history, err.Error())
			slog.Warn("SQL generation failed", "attempt", attempt, "error", err)
			continue
		}
		sql = FixValues(generated, entities.Gender, entities.Region)

		if err := Validate(sql); err != nil {
			history = append(history, "Validation error: "+err.Error())
			slog.Warn("SQL rejected", "attempt", attempt, "error", err)
			if e.observer != nil {
				e.observer.RecordSQLValidationFailure()
			}
			continue
		}
		if err := e.graderCheck(ctx, sql); err != nil {
			history = append(history, "Validation error: "+err.Error())
			slog.Warn("SQL rejected by grader", "attempt", attempt, "error", err)
			if e.observer != nil {
				e.observer.RecordSQLValidationFailure()
			}
			continue
		}
		sql = EnsureLimit(sql)

		rows, _, err := e.db.Query(ctx, sql)
		if err != nil {
			history = append(history, err.Error())
			slog.Warn("SQL execution failed", "attempt", attempt, "error", err)
			continue
		}

		return &Result{
			Query:    userQuery,
			SQL:      sql,
			Rows:     rows,
			Answer:   e.narrate(ctx, userQuery, rows),
			Entities: entities,
			Attempts: attempt,
		}, nil
	}

	lastErr := "unknown error"
	if len(history) > 0 {
		lastErr = history[len(history)-1]
	}
	slog.Error("SQL query failed after retries", "query", userQuery, "error", lastErr)
	return &Result{
		Query:    userQuery,
		SQL:      sql,
		Answer:   failureAnswer,
		Entities: entities,
		Attempts: e.config.MaxRetries,
		Err:      lastErr,
	}, nil
}

// fewShotExamples retrieves similar question/SQL pairs from the example
// collection, falling back to the hardcoded set.
func (e *Engine) fewShotExamples(ctx context.Context, userQuery string) []Example {
	if e.vectors == nil || e.embed == nil {
		return DefaultExamples()
	}

	vec, err := e.embed.EmbedQuery(ctx, userQuery)
	if err != nil {
		slog.Warn("Few-shot embedding failed, using defaults", "error", err)
		return DefaultExamples()
	}
	hits, err := e.vectors.Search(ctx, e.config.Collection, vec, e.config.FewShotCount, float32(e.config.FewShotMinScore), nil)
	if err != nil {
		slog.Warn("Few-shot search failed, using defaults", "error", err)
		return DefaultExamples()
	}
	if len(hits) == 0 {
		return DefaultExamples()
	}

	examples := make([]Example, 0, len(hits))
	for _, hit := range hits {
		question, _ := hit.Payload["question"].(string)
		sqlText, _ := hit.Payload["sql"].(string)
		if question == "" || sqlText == "" {
			continue
		}
		examples = append(examples, Example{Question: question, SQL: sqlText, Score: float64(hit.Score)})
	}
	if len(examples) == 0 {
		return DefaultExamples()
	}
	return examples
}

func (e *Engine) generateSQL(ctx context.Context, userQuery string, examples []Example, entities Entities, history []string) (string, error) {
	var b strings.Builder
	b.WriteString("## Ví dụ:\n")
	for i, ex := range examples {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Câu hỏi: " + ex.Question + "\nSQL: " + ex.SQL)
	}

	if len(history) > 0 {
		recent := history
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		b.WriteString("\n\nCác lỗi trước đó cần tránh:")
		for _, err := range recent {
			b.WriteString("\n- " + err)
		}
	}

	var hints []string
	if entities.Year > 0 {
		hints = append(hints, fmt.Sprintf("Năm: %d", entities.Year))
	}
	if entities.Score > 0 {
		hints = append(hints, fmt.Sprintf("Điểm: %g", entities.Score))
	}
	if entities.KhoiThi != "" {
		hints = append(hints, "Khối: "+entities.KhoiThi)
	}
	if entities.Gender != "" {
		hints = append(hints, "Giới tính: "+entities.Gender)
	}
	if entities.Region != "" {
		hints = append(hints, "Khu vực: "+entities.Region)
	}
	if len(hints) > 0 {
		b.WriteString("\n\nThông tin trích xuất: " + strings.Join(hints, ", "))
	}

	b.WriteString("\n\n## Câu hỏi cần trả lời:\n" + userQuery + "\n\n## SQL:")

	response, err := e.generator.Generate(ctx, llm.Request{
		System: systemPrompt,
		Prompt: b.String(),
	})
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}
	return ExtractSQL(response), nil
}

// graderCheck runs the optional LLM validation. Grader unavailability or
// malformed output lets the statement through; only an explicit
// valid=false blocks it.
func (e *Engine) graderCheck(ctx context.Context, sql string) error {
	if e.grader == nil {
		return nil
	}
	var verdict struct {
		Valid      bool   `json:"valid"`
		Error      string `json:"error"`
		Suggestion string `json:"suggestion"`
	}
	err := e.grader.GenerateJSON(ctx, llm.Request{Prompt: fmt.Sprintf(validationPrompt, sql)}, &verdict)
	if err != nil {
		slog.Warn("SQL grader unavailable", "error", err)
		return nil
	}
	if !verdict.Valid {
		msg := verdict.Error
		if msg == "" {
			msg = "validation failed"
		}
		if verdict.Suggestion != "" {
			msg += " (" + verdict.Suggestion + ")"
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// narrate renders the deterministic table and asks the model only for a
// short intro. Intro failures degrade to the bare table.
func (e *Engine) narrate(ctx context.Context, userQuery string, rows []map[string]any) string {
	if len(rows) == 0 {
		return noDataAnswer
	}

	table := BuildMarkdownTable(rows)

	sample := rows
	if len(sample) > e.config.MaxIntroRows {
		sample = sample[:e.config.MaxIntroRows]
	}
	sampleJSON, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return table
	}
	intro, err := e.generator.Generate(ctx, llm.Request{
		System: introSystem,
		Prompt: fmt.Sprintf(introPrompt, userQuery, string(sampleJSON), len(rows)),
	})
	if err != nil || strings.TrimSpace(intro) == "" {
		slog.Warn("Intro generation failed, returning table only", "error", err)
		return table
	}
	return strings.TrimSpace(intro) + "\n\n" + table
}
