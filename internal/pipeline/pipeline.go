// Package pipeline runs the evaluation stages in order: rule filter,
// evidence aggregation, decision, explanation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ppiankov/safeguard/internal/decision"
	"github.com/ppiankov/safeguard/internal/evidence"
	"github.com/ppiankov/safeguard/internal/extract"
	"github.com/ppiankov/safeguard/internal/llm"
	"github.com/ppiankov/safeguard/internal/model"
	"github.com/ppiankov/safeguard/internal/rules"
	"github.com/ppiankov/safeguard/internal/search"
	"github.com/ppiankov/safeguard/internal/telemetry"
)

// ErrChatUnavailable is returned when the base model produced no answer
var ErrChatUnavailable = errors.New("AI generation failed")

// Deps are the swappable collaborators of a pipeline. Nil fields are
// disabled, except Extractor which defaults to the heuristic extractor.
type Deps struct {
	Extractor extract.Extractor
	Primary   search.Searcher
	Fallback  search.Searcher
	Explainer llm.Provider
	Chat      llm.Provider
	Telemetry *telemetry.Provider
	Logger    *slog.Logger
}

// Pipeline orchestrates one evaluation
type Pipeline struct {
	filter    *rules.Filter
	evidence  *evidence.Aggregator
	engine    *decision.Engine
	explainer *llm.Explainer
	chat      *llm.ChatModel
	telemetry *telemetry.Provider
	logger    *slog.Logger
	config    *model.Config

	now   func() time.Time
	newID func() string
}

// FromConfig builds providers from configuration and returns a pipeline.
// LLM roles whose provider cannot be created are disabled with a warning.
func FromConfig(cfg *model.Config, tel *telemetry.Provider, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	primary, fallback, err := search.NewFromConfig(&cfg.Search, cfg.HTTP, logger)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Primary:   primary,
		Fallback:  fallback,
		Explainer: newRoleProvider("explainer", cfg.LLM.Explainer, cfg.HTTP, logger),
		Chat:      newRoleProvider("chat", cfg.LLM.Chat, cfg.HTTP, logger),
		Telemetry: tel,
		Logger:    logger,
	}

	heuristic := extract.NewHeuristicExtractor(&cfg.Evidence)
	deps.Extractor = heuristic
	if cfg.Evidence.Extractor == "llm" {
		if p := newRoleProvider("extractor", cfg.LLM.Extractor, cfg.HTTP, logger); p != nil {
			deps.Extractor = extract.NewLLMExtractor(p, cfg.LLM.Extractor, heuristic, cfg.Evidence.MaxClaims, logger)
		}
	}

	return New(cfg, deps)
}

func newRoleProvider(role string, pc model.ProviderConfig, httpCfg model.HTTPConfig, logger *slog.Logger) llm.Provider {
	if !pc.Enabled() {
		return nil
	}
	llmCfg := llm.ConfigFromModel(pc, httpCfg)
	llmCfg.Logger = logger
	p, err := llm.NewProvider(llmCfg)
	if err != nil {
		logger.Warn("LLM role disabled", "role", role, "provider", pc.Provider, "error", err)
		return nil
	}
	return p
}

// New creates a pipeline from explicit collaborators
func New(cfg *model.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewHeuristicExtractor(&cfg.Evidence)
	}
	if deps.Telemetry == nil {
		tel, err := telemetry.New(context.Background(), nil)
		if err != nil {
			return nil, err
		}
		deps.Telemetry = tel
	}

	filter, err := rules.NewFilter(&cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("rule filter: %w", err)
	}

	tel := deps.Telemetry
	aggregator, err := evidence.NewAggregator(evidence.Options{
		Extractor:     deps.Extractor,
		Primary:       deps.Primary,
		Fallback:      deps.Fallback,
		Classifier:    evidence.NewTierClassifier(&cfg.Tiers),
		Config:        cfg.Evidence,
		SearchTimeout: cfg.Search.Timeout,
		Workers:       cfg.Concurrency.ClaimWorkers,
		Logger:        deps.Logger,
		OnFallback:    tel.RecordFallback,
	})
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		filter:    filter,
		evidence:  aggregator,
		engine:    decision.NewEngine(&cfg.Decision),
		explainer: llm.NewExplainer(deps.Explainer, cfg.LLM.Explainer, deps.Logger),
		chat:      newChatModel(deps.Chat, cfg.LLM.Chat),
		telemetry: tel,
		logger:    deps.Logger.With("component", "pipeline"),
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}, nil
}

func newChatModel(p llm.Provider, cfg model.ProviderConfig) *llm.ChatModel {
	if p == nil {
		return nil
	}
	return llm.NewChatModel(p, cfg)
}

// ChatEnabled reports whether a base model is configured
func (p *Pipeline) ChatEnabled() bool {
	return p.chat != nil
}

// Evaluate runs every stage for one request. It only fails on malformed
// decision input; provider and explanation errors are recovered.
func (p *Pipeline) Evaluate(ctx context.Context, req model.EvaluationRequest) (*model.EvaluationResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, model.ErrEmptyContent
	}

	start := time.Now()
	requestID := p.newID()
	logger := p.logger.With("request_id", requestID)

	ctx, span := p.telemetry.StartSpan(ctx, telemetry.SpanEvaluate, attribute.String("safeguard.request_id", requestID))
	defer span.End()

	// Rules see the readable text; the extractor handles markup itself.
	text, err := extract.VisibleText(req.Content)
	if err != nil {
		logger.DebugContext(ctx, "content is not parseable HTML", "error", err)
		text = req.Content
	}

	_, rulesSpan := p.telemetry.StartSpan(ctx, telemetry.SpanRules)
	flags := p.filter.Evaluate(text)
	rulesSpan.SetAttributes(
		attribute.Int("safeguard.risk_subtotal", flags.RiskSubtotal),
		attribute.Bool("safeguard.hard_block", flags.HardBlock()),
	)
	rulesSpan.End()

	evidenceCtx, evidenceSpan := p.telemetry.StartSpan(ctx, telemetry.SpanEvidence)
	summary := p.evidence.Gather(evidenceCtx, req.Content, flags)
	evidenceSpan.SetAttributes(attribute.Int("safeguard.claims", len(summary)))
	evidenceSpan.End()

	_, decisionSpan := p.telemetry.StartSpan(ctx, telemetry.SpanDecision)
	verdict, err := p.engine.Decide(decision.Input{Flags: flags, Evidence: summary, Context: req.Context})
	if err != nil {
		decisionSpan.RecordError(err)
		decisionSpan.SetStatus(codes.Error, "malformed input")
		decisionSpan.End()
		span.SetStatus(codes.Error, "decision failed")
		return nil, fmt.Errorf("decide: %w", err)
	}
	decisionSpan.SetAttributes(
		attribute.String("safeguard.decision", string(verdict.Decision)),
		attribute.String("safeguard.rule", verdict.Rule),
	)
	decisionSpan.End()

	explainCtx, explainSpan := p.telemetry.StartSpan(ctx, telemetry.SpanExplain)
	explanation, err := p.explainer.Explain(explainCtx, llm.ExplainRequest{Verdict: verdict, Flags: flags, Evidence: summary})
	if err != nil {
		explainSpan.RecordError(err)
		logger.WarnContext(ctx, "explanation fell back to template", "error", err)
	}
	explainSpan.SetAttributes(attribute.String("safeguard.generated_by", explanation.GeneratedBy))
	explainSpan.End()

	var warnings []string
	if summary.Count(model.StatusNoEvidence) > 0 && anyFallback(summary) {
		warnings = append(warnings, "Evidence search was unavailable; claims could not be verified")
	}

	details := model.Details{
		RuleFlags:       flags,
		EvidenceSummary: summary,
		DecisionReason:  verdict.Reason,
		DecisionRule:    verdict.Rule,

		ExplanationSource: explanation.ExplanationSource,
	}
	if verdict.Rule == decision.RuleMissingContext {
		details.MissingContext = p.engine.MissingContext(req.Context)
	}

	result := &model.EvaluationResult{
		RequestID:   requestID,
		Decision:    verdict.Decision,
		Severity:    verdict.Severity,
		RiskScore:   verdict.RiskScore,
		Explanation: explanation.Text,
		Warnings:    warnings,
		Details:     details,
		Timestamp:   p.now(),
	}

	elapsed := time.Since(start)
	p.telemetry.RecordDecision(ctx, verdict.Decision, verdict.Severity)
	p.telemetry.RecordDuration(ctx, elapsed, "evaluate")

	logger.InfoContext(ctx, "evaluation complete",
		"decision", verdict.Decision,
		"severity", verdict.Severity,
		"risk_score", verdict.RiskScore,
		"rule", verdict.Rule,
		"claims", len(summary),
		"duration", elapsed,
	)

	return result, nil
}

// Chat asks the base model, then gates its answer. The answer is only
// returned when the decision is safe.
func (p *Pipeline) Chat(ctx context.Context, message string) (*model.ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, model.ErrEmptyContent
	}

	ctx, span := p.telemetry.StartSpan(ctx, telemetry.SpanChat)
	defer span.End()

	if p.chat == nil {
		return nil, fmt.Errorf("%w: chat model not configured", ErrChatUnavailable)
	}

	reply, err := p.chat.Reply(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat generation failed")
		p.logger.WarnContext(ctx, "chat generation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrChatUnavailable, err)
	}

	// The answer is evaluated without user context
	res, err := p.Evaluate(ctx, model.EvaluationRequest{Content: reply.Text})
	if err != nil {
		return nil, err
	}

	out := &model.ChatResult{
		EvaluationResult: *res,
		UserMessage:      message,
		Safe:             res.Decision.Safe(),
	}
	if out.Safe {
		out.AIResponse = reply.Text
		out.FilteredResponse = reply.Text
	}
	return out, nil
}

func anyFallback(summary model.EvidenceSummary) bool {
	for _, v := range summary {
		if v.FallbackApplied {
			return true
		}
	}
	return false
}
