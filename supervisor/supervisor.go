// Package supervisor orchestrates the engines: a query is classified by
// the semantic router, dispatched through a small state machine over
// {route, sql, rag, school_info, general, combine, clarify}, and the
// finalised exchange is appended to the session transcript.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nhdandz/TSBot/llm"
	"github.com/nhdandz/TSBot/rag"
	"github.com/nhdandz/TSBot/router"
	"github.com/nhdandz/TSBot/session"
	"github.com/nhdandz/TSBot/sqlagent"
)

// AgentType identifies which engine handles a query.
type AgentType string

const (
	AgentSQL        AgentType = "sql"
	AgentRAG        AgentType = "rag"
	AgentGeneral    AgentType = "general"
	AgentSchoolInfo AgentType = "school_info"
)

// node names the workflow states. There are no back-edges into route, so
// every run terminates.
type node string

const (
	nodeRoute      node = "route"
	nodeSQL        node = "sql"
	nodeRAG        node = "rag"
	nodeSchoolInfo node = "school_info"
	nodeGeneral    node = "general"
	nodeCombine    node = "combine"
	nodeClarify    node = "clarify"
	nodeEnd        node = "end"
)

// SQLEngine is the score-lookup capability.
type SQLEngine interface {
	Answer(ctx context.Context, query string) (*sqlagent.Result, error)
}

// RAGEngine is the legal-retrieval capability.
type RAGEngine interface {
	Answer(ctx context.Context, query string) (*rag.Result, error)
}

// IntentRouter classifies queries. *router.Router satisfies it.
type IntentRouter interface {
	Route(ctx context.Context, query string) (*router.Result, error)
}

// Transcript stores per-session conversation history. *session.Store
// satisfies it.
type Transcript interface {
	Append(ctx context.Context, sessionID string, msg session.Message) error
	History(ctx context.Context, sessionID string, limit int) ([]session.Message, error)
}

// Config tunes the supervisor.
type Config struct {
	// BestOf lets the supervisor accept the router's top intent when its
	// score lands between the best-of floor and the match threshold.
	BestOf       bool `yaml:"best_of"`
	HistoryLimit int  `yaml:"history_limit"`
	MaxSteps     int  `yaml:"max_steps"`
}

// SetDefaults fills missing settings.
func (c *Config) SetDefaults() {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 5
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 10
	}
}

// Source records where part of a reply came from.
type Source struct {
	Type   string      `json:"type"`
	Legal  *rag.Source `json:"legal,omitempty"`
	SQL    string      `json:"sql,omitempty"`
	Table  string      `json:"table,omitempty"`
	School string      `json:"school,omitempty"`
}

// Response is the supervisor's reply for one query.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"response"`
	Intent  string   `json:"intent,omitempty"`
	Sources []Source `json:"sources"`
	Err     string   `json:"error,omitempty"`
}

// state is the per-run record threaded through the workflow nodes.
type state struct {
	messages  []session.Message
	query     string
	intent    string
	agent     AgentType
	clarify   bool
	sqlResult *sqlagent.Result
	ragResult *rag.Result
	response  string
	sources   []Source
	errMsg    string
	steps     int
}

// Supervisor runs the workflow. router, schools and transcript may be
// nil; routing then goes straight to the planner, school questions fall
// through to RAG, and no history is kept.
type Supervisor struct {
	config     Config
	sqlEngine  SQLEngine
	ragEngine  RAGEngine
	router     IntentRouter
	generator  llm.LLM
	schools    SchoolDirectory
	transcript Transcript
}

// New wires the supervisor.
func New(cfg Config, sqlEngine SQLEngine, ragEngine RAGEngine, intents IntentRouter, generator llm.LLM, schools SchoolDirectory, transcript Transcript) *Supervisor {
	cfg.SetDefaults()
	return &Supervisor{
		config:     cfg,
		sqlEngine:  sqlEngine,
		ragEngine:  ragEngine,
		router:     intents,
		generator:  generator,
		schools:    schools,
		transcript: transcript,
	}
}

// Process answers one query. Any error escaping a node is caught here
// and replaced with a user-safe apology; the error text stays in the
// response for diagnostics.
func (s *Supervisor) Process(ctx context.Context, sessionID, query string) *Response {
	st := &state{query: query}

	if s.transcript != nil {
		history, err := s.transcript.History(ctx, sessionID, s.config.HistoryLimit)
		if err != nil {
			slog.Warn("Failed to load session history", "session", sessionID, "error", err)
		} else {
			st.messages = history
		}
		if err := s.transcript.Append(ctx, sessionID, session.Message{Role: "user", Content: query}); err != nil {
			slog.Warn("Failed to append user message", "session", sessionID, "error", err)
		}
	}

	if err := s.run(ctx, st); err != nil {
		slog.Error("Workflow failed", "query", query, "error", err)
		st.response = apologyAnswer
		st.errMsg = err.Error()
	}
	if st.response == "" {
		st.response = fallbackAnswer
	}

	if s.transcript != nil {
		msg := session.Message{Role: "assistant", Content: st.response}
		if st.intent != "" {
			msg.Metadata = map[string]any{"intent": st.intent}
		}
		if err := s.transcript.Append(ctx, sessionID, msg); err != nil {
			slog.Warn("Failed to append assistant message", "session", sessionID, "error", err)
		}
	}

	return &Response{
		Query:   query,
		Answer:  st.response,
		Intent:  st.intent,
		Sources: st.sources,
		Err:     st.errMsg,
	}
}

// run drives the state machine from route to end.
func (s *Supervisor) run(ctx context.Context, st *state) error {
	current := nodeRoute
	for current != nodeEnd {
		st.steps++
		if st.steps > s.config.MaxSteps {
			return fmt.Errorf("workflow exceeded %d steps at node %s", s.config.MaxSteps, current)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var err error
		switch current {
		case nodeRoute:
			s.routeNode(ctx, st)
			current = decideNext(st)
		case nodeSQL:
			s.sqlNode(ctx, st)
			current = afterSQL(st)
		case nodeRAG:
			s.ragNode(ctx, st)
			current = nodeCombine
		case nodeSchoolInfo:
			s.schoolInfoNode(ctx, st)
			current = afterSchoolInfo(st)
		case nodeGeneral:
			err = s.generalNode(ctx, st)
			current = nodeEnd
		case nodeCombine:
			err = s.combineNode(ctx, st)
			current = nodeEnd
		case nodeClarify:
			st.response = clarifyAnswer
			st.clarify = true
			current = nodeEnd
		default:
			return fmt.Errorf("unknown workflow node %s", current)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// intentAgents is the fixed intent-to-agent table for matched routes.
var intentAgents = map[string]AgentType{
	// SQL: score and quota lookups
	"score_lookup": AgentSQL,
	"score_check":  AgentSQL,
	"quota_lookup": AgentSQL,
	"comparison":   AgentSQL,

	// RAG: regulations, procedures, FAQ
	"regulation":             AgentRAG,
	"regulation_health":      AgentRAG,
	"regulation_politics":    AgentRAG,
	"regulation_academic":    AgentRAG,
	"regulation_age":         AgentRAG,
	"procedure":              AgentRAG,
	"procedure_registration": AgentRAG,
	"procedure_documents":    AgentRAG,
	"procedure_exam":         AgentRAG,
	"faq":                    AgentRAG,
	"faq_benefits":           AgentRAG,
	"faq_life":               AgentRAG,
	"faq_career":             AgentRAG,
	"faq_female":             AgentRAG,
	"priority":               AgentRAG,

	"school_info": AgentSchoolInfo,

	// General: greetings and questions about the bot
	"greeting":  AgentGeneral,
	"about_bot": AgentGeneral,
	"unclear":   AgentGeneral,
}

// agentForIntent maps an intent name to its agent, guessing from the
// name's prefix when the intent is not in the table.
func agentForIntent(intent string) AgentType {
	if agent, ok := intentAgents[intent]; ok {
		return agent
	}
	switch {
	case strings.HasPrefix(intent, "regulation"),
		strings.HasPrefix(intent, "procedure"),
		strings.HasPrefix(intent, "faq"):
		return AgentRAG
	case strings.HasPrefix(intent, "score"), strings.HasPrefix(intent, "quota"):
		return AgentSQL
	}
	slog.Warn("Unknown intent, falling back to general", "intent", intent)
	return AgentGeneral
}

// routeNode classifies the query: semantic router first, then the LLM
// planner for unmatched or failed routes.
func (s *Supervisor) routeNode(ctx context.Context, st *state) {
	if s.router != nil {
		result, err := s.router.Route(ctx, st.query)
		switch {
		case err != nil:
			slog.Warn("Semantic routing failed, falling back to planner", "error", err)
		case result.Matched:
			st.intent = result.Intent
			st.agent = agentForIntent(result.Intent)
			slog.Info("Routed by intent", "intent", st.intent, "agent", st.agent, "confidence", result.Confidence)
			return
		case s.config.BestOf && result.Confidence >= router.BestOfFloor:
			if intent, score := router.BestOf(result.AllScores); intent != "" {
				st.intent = intent
				st.agent = agentForIntent(intent)
				slog.Info("Accepted near-threshold intent", "intent", intent, "agent", st.agent, "confidence", score)
				return
			}
		}
	}
	s.planRoute(ctx, st)
}

// planRoute asks the LLM planner for a routing decision. Planner failure
// defaults to general.
func (s *Supervisor) planRoute(ctx context.Context, st *state) {
	history := noHistoryText
	if len(st.messages) > 0 {
		recent := st.messages
		if len(recent) > s.config.HistoryLimit {
			recent = recent[len(recent)-s.config.HistoryLimit:]
		}
		lines := make([]string, len(recent))
		for i, m := range recent {
			lines[i] = m.Role + ": " + m.Content
		}
		history = strings.Join(lines, "\n")
	}

	var plan struct {
		Agent                 string  `json:"agent"`
		Confidence            float64 `json:"confidence"`
		Reason                string  `json:"reason"`
		ClarificationQuestion string  `json:"clarification_question"`
	}
	err := s.generator.GenerateJSON(ctx, llm.Request{
		Prompt: fmt.Sprintf(planningPrompt, st.query, history),
	}, &plan)
	if err != nil {
		slog.Warn("Planner failed, defaulting to general", "error", err)
		st.intent = "general"
		st.agent = AgentGeneral
		st.errMsg = err.Error()
		return
	}

	st.intent = plan.Agent
	switch plan.Agent {
	case "sql":
		st.agent = AgentSQL
	case "both":
		// SQL first; a miss falls through to RAG in afterSQL.
		st.agent = AgentSQL
	case "rag":
		st.agent = AgentRAG
	case "school_info":
		st.agent = AgentSchoolInfo
	case "clarification":
		st.clarify = true
	default:
		st.agent = AgentGeneral
		if plan.Agent == "" {
			st.intent = "general"
		}
	}
	slog.Info("Planner decision", "agent", plan.Agent, "confidence", plan.Confidence, "reason", plan.Reason)
}

func decideNext(st *state) node {
	if st.clarify {
		return nodeClarify
	}
	switch st.agent {
	case AgentSQL:
		return nodeSQL
	case AgentRAG:
		return nodeRAG
	case AgentSchoolInfo:
		return nodeSchoolInfo
	default:
		return nodeGeneral
	}
}

// sqlNode runs the score engine. Engine errors stay in the state so the
// workflow can still finish with a usable message.
func (s *Supervisor) sqlNode(ctx context.Context, st *state) {
	result, err := s.sqlEngine.Answer(ctx, st.query)
	if err != nil {
		slog.Error("SQL engine error", "error", err)
		st.errMsg = err.Error()
		return
	}
	st.sqlResult = result
	st.response = result.Answer
}

// afterSQL ends the workflow when SQL produced rows. A miss only falls
// through to RAG when the intent was ambiguous; a pure data question
// keeps SQL's own no-data message instead of irrelevant legal text.
func afterSQL(st *state) node {
	if st.sqlResult != nil && len(st.sqlResult.Rows) > 0 {
		return nodeEnd
	}
	if st.intent == "both" || st.intent == "rag" {
		return nodeRAG
	}
	return nodeEnd
}

func (s *Supervisor) ragNode(ctx context.Context, st *state) {
	result, err := s.ragEngine.Answer(ctx, st.query)
	if err != nil {
		slog.Error("RAG engine error", "error", err)
		st.errMsg = err.Error()
		return
	}
	st.ragResult = result
	st.response = result.Answer
	for i := range result.Sources {
		st.sources = append(st.sources, Source{Type: "legal", Legal: &result.Sources[i]})
	}
}

func afterSchoolInfo(st *state) node {
	if st.response != "" {
		return nodeEnd
	}
	slog.Info("School info fallback to RAG")
	return nodeRAG
}

func (s *Supervisor) generalNode(ctx context.Context, st *state) error {
	response, err := s.generator.Generate(ctx, llm.Request{
		Prompt: fmt.Sprintf(generalPrompt, st.query),
	})
	if err != nil {
		return fmt.Errorf("general answer: %w", err)
	}
	st.response = response
	return nil
}

// combineNode assembles the final reply from whichever engines ran. The
// LLM merge only happens when both produced an answer.
func (s *Supervisor) combineNode(ctx context.Context, st *state) error {
	var (
		sqlRows   bool
		sqlAnswer string
		ragAnswer string
	)
	if st.sqlResult != nil {
		sqlRows = len(st.sqlResult.Rows) > 0
		sqlAnswer = st.sqlResult.Answer
	}
	if st.ragResult != nil {
		ragAnswer = st.ragResult.Answer
	}

	switch {
	case !sqlRows && ragAnswer != "":
		st.response = ragAnswer
	case sqlAnswer != "" && ragAnswer == "":
		st.response = sqlAnswer
	case sqlAnswer == "" && ragAnswer == "":
		st.response = noInfoAnswer
	default:
		merged, err := s.generator.Generate(ctx, llm.Request{
			Prompt: fmt.Sprintf(combinePrompt, st.query, sqlAnswer, ragAnswer),
		})
		if err != nil {
			return fmt.Errorf("combine answers: %w", err)
		}
		st.response = merged
		if st.sqlResult.SQL != "" {
			st.sources = append(st.sources, Source{Type: "sql", SQL: st.sqlResult.SQL})
		}
	}
	return nil
}
