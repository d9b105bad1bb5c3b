// Package gateway sequences the mediation pipeline: redaction,
// authorization, retrieval screening, model dispatch and response
// redaction, emitting exactly one terminal decision per request.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wardenai/warden-oss/internal/governance"
	"github.com/wardenai/warden-oss/pkg/domain"
	"github.com/wardenai/warden-oss/pkg/policy/authz"
	"github.com/wardenai/warden-oss/pkg/policy/dlp"
	"github.com/wardenai/warden-oss/pkg/policy/posture"
	"github.com/wardenai/warden-oss/pkg/policy/rag"
	"github.com/wardenai/warden-oss/pkg/retrieval"
	"github.com/wardenai/warden-oss/pkg/storage"
	"github.com/wardenai/warden-oss/pkg/telemetry"
)

// Pipeline stage names recorded on decisions.
const (
	StageReceived           = "received"
	StagePromptRedaction    = "prompt_redaction"
	StageAuthorization      = "tool_authorization"
	StageRetrievalScreening = "retrieval_screening"
	StageDispatch           = "dispatch"
	StageResponseRedaction  = "response_redaction"
	StageCompleted          = "completed"
	StageFailed             = "failed"
)

// DefaultRetrievalK is the number of chunks fetched per retrieval query.
const DefaultRetrievalK = 4

// Options wires the gateway's collaborators. Registry, Policies, Events
// and Model are required; the rest default to in-process implementations.
type Options struct {
	Registry  storage.PrincipalRegistry
	Policies  storage.PolicyStore
	Events    storage.EventLog
	Model     ModelClient
	Retrieval retrieval.Store
	Authz     authz.Evaluator
	Screener  *rag.Screener
	Redactor  *dlp.Redactor
	Budget    *governance.BudgetTracker
	Logger    *slog.Logger

	// RetrievalK overrides DefaultRetrievalK when positive.
	RetrievalK int
}

// Gateway mediates requests between callers and the model backend. It is
// stateless between requests; principal and policy state is read once at
// request entry.
type Gateway struct {
	registry   storage.PrincipalRegistry
	policies   storage.PolicyStore
	events     storage.EventLog
	model      ModelClient
	search     retrieval.Store
	authz      authz.Evaluator
	screener   *rag.Screener
	redactor   *dlp.Redactor
	budget     *governance.BudgetTracker
	logger     *slog.Logger
	tracer     trace.Tracer
	retrievalK int
	now        func() time.Time
}

// New constructs a Gateway from the options, applying defaults for
// optional collaborators.
func New(opts Options) *Gateway {
	g := &Gateway{
		registry:   opts.Registry,
		policies:   opts.Policies,
		events:     opts.Events,
		model:      opts.Model,
		search:     opts.Retrieval,
		authz:      opts.Authz,
		screener:   opts.Screener,
		redactor:   opts.Redactor,
		budget:     opts.Budget,
		logger:     opts.Logger,
		tracer:     otel.Tracer("warden.gateway"),
		retrievalK: opts.RetrievalK,
		now:        time.Now,
	}
	if g.authz == nil {
		g.authz = authz.Direct{}
	}
	if g.screener == nil {
		g.screener = rag.NewScreener()
	}
	if g.redactor == nil {
		g.redactor = dlp.NewRedactor()
	}
	if g.budget == nil {
		g.budget = governance.NewBudgetTracker()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.retrievalK <= 0 {
		g.retrievalK = DefaultRetrievalK
	}
	return g
}

// Request is one inbound mediation request.
type Request struct {
	PrincipalID  string   `json:"principal_id"`
	Actor        string   `json:"actor,omitempty"`
	Prompt       string   `json:"prompt"`
	Tools        []string `json:"tools,omitempty"`
	UseRetrieval bool     `json:"use_retrieval,omitempty"`
	TraceID      string   `json:"trace_id,omitempty"`
}

// Response is the fully-formed mediation result. Denied and blocked
// requests return a Response whose Decision explains the outcome; only
// validation and upstream failures surface as errors.
type Response struct {
	TraceID       string          `json:"trace_id"`
	Text          string          `json:"response_text"`
	Redactions    []string        `json:"redactions_applied"`
	Decision      domain.Decision `json:"decision"`
	ContextChunks int             `json:"context_chunks,omitempty"`
}

// MediateRequest runs the full pipeline for one request. The policy
// snapshot and principal are fetched once at entry; concurrent toggles
// affect only requests that start afterwards.
func (g *Gateway) MediateRequest(ctx context.Context, req Request) (Response, error) {
	start := g.now()
	defer func() { requestDuration.Observe(time.Since(start).Seconds()) }()

	ctx, span := g.tracer.Start(ctx, "gateway.mediate")
	defer span.End()

	if strings.TrimSpace(req.Prompt) == "" {
		return Response{}, domain.Validation("prompt", domain.ErrEmptyPrompt)
	}
	if req.PrincipalID == "" {
		return Response{}, domain.Validation("principal_id", fmt.Errorf("must not be empty"))
	}

	principal, err := g.registry.GetPrincipal(ctx, req.PrincipalID)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			return Response{}, domain.Validation("principal_id", err)
		}
		return Response{}, fmt.Errorf("load principal: %w", err)
	}

	snap, err := g.policies.Snapshot(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("policy snapshot: %w", err)
	}

	m := &mediation{
		g:         g,
		span:      span,
		traceID:   req.TraceID,
		actor:     req.Actor,
		principal: principal,
		snap:      snap,
	}
	if m.traceID == "" {
		m.traceID = uuid.New().String()
	}

	if !principal.Active() {
		return m.deny(ctx, StageReceived, "", "principal is suspended"), nil
	}

	prompt := req.Prompt
	if pol, ok := snap.Lookup(domain.RuleDLP); ok && pol.Enabled {
		if res := g.redactor.Redact(prompt); res.Applied() {
			prompt = res.Redacted
			m.recordRedaction(ctx, "prompt", res)
		}
	}

	for _, tool := range req.Tools {
		v, err := g.authz.Evaluate(ctx, principal, tool, snap)
		if err != nil {
			return Response{}, fmt.Errorf("authorize tool %q: %w", tool, err)
		}
		switch v.Outcome {
		case authz.OutcomeDeny:
			m.event(ctx, domain.EventToolDenied, map[string]string{"tool": tool})
			m.event(ctx, domain.EventPolicyViolation, map[string]string{"tool": tool})
			return m.deny(ctx, StageAuthorization, v.PolicyName, v.Reason), nil
		case authz.OutcomeAdvisoryDeny:
			m.event(ctx, domain.EventToolDenied, map[string]string{"tool": tool, "advisory": "true"})
			m.advisory(ctx, StageAuthorization, v.PolicyName, v.Reason)
		}
	}

	if req.UseRetrieval {
		chunks, denied := g.retrieve(ctx, m, req.Prompt, prompt)
		if denied != nil {
			return *denied, nil
		}
		if len(chunks) > 0 {
			prompt = assemblePrompt(prompt, chunks)
			m.contextChunks = len(chunks)
		}
	}

	if !g.budget.Allow(principal.ID, principal.BudgetPerDay) {
		return m.deny(ctx, StageDispatch, "", "budget_exhausted"), nil
	}

	completion, err := g.model.Complete(ctx, prompt, PrincipalContext{
		PrincipalID: principal.ID,
		Actor:       req.Actor,
		TraceID:     m.traceID,
	})
	if err != nil {
		m.fail(ctx, err)
		return Response{}, err
	}
	g.budget.Consume(principal.ID, completion.TokenCount)
	m.event(ctx, domain.EventLLMRequest, map[string]string{
		"tokens": fmt.Sprintf("%d", completion.TokenCount),
	})

	text := completion.Text
	if pol, ok := snap.Lookup(domain.RuleDLP); ok && pol.Enabled {
		if res := g.redactor.Redact(text); res.Applied() {
			text = res.Redacted
			m.recordRedaction(ctx, "response", res)
		}
	}

	kind := domain.DecisionAllow
	if len(m.redactions) > 0 {
		kind = domain.DecisionAllowWithRedaction
	}
	decision := m.terminal(ctx, kind, StageCompleted, "", "completed")

	return Response{
		TraceID:       m.traceID,
		Text:          text,
		Redactions:    m.redactions,
		Decision:      decision,
		ContextChunks: m.contextChunks,
	}, nil
}

// retrieve screens the query, searches the store and screens the retrieved
// context. A non-nil denied response short-circuits the pipeline.
func (g *Gateway) retrieve(ctx context.Context, m *mediation, rawQuery, redactedQuery string) ([]retrieval.Chunk, *Response) {
	pol, governed := m.snap.Lookup(domain.RuleRAGContext)
	screener := g.screenerFor(pol, governed)

	if governed && pol.Enabled {
		qv := screener.ScreenQuery(rawQuery)
		if qv.Blocked {
			m.event(ctx, domain.EventQueryBlocked, map[string]string{
				"patterns": strings.Join(qv.MatchedPatterns, ","),
			})
			if pol.DryRun {
				m.advisory(ctx, StageRetrievalScreening, pol.Name, qv.Reason)
			} else {
				resp := m.deny(ctx, StageRetrievalScreening, pol.Name, qv.Reason)
				return nil, &resp
			}
		}
	}

	if g.search == nil {
		return nil, nil
	}

	chunks, err := g.search.Search(ctx, redactedQuery, g.retrievalK, nil)
	if err != nil {
		// Retrieval is best-effort context enrichment; the request
		// proceeds without it.
		g.logger.Warn("retrieval search failed", "trace_id", m.traceID, "error", err)
		return nil, nil
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	if governed && pol.Enabled {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		cv := screener.ScreenContext(texts)
		if !cv.Safe {
			reason := fmt.Sprintf("retrieved context failed screening: %s", strings.Join(cv.MatchedPatterns, ", "))
			m.event(ctx, domain.EventPolicyViolation, map[string]string{
				"patterns": strings.Join(cv.MatchedPatterns, ","),
			})
			if pol.DryRun {
				m.advisory(ctx, StageRetrievalScreening, pol.Name, reason)
			} else {
				resp := m.deny(ctx, StageRetrievalScreening, pol.Name, reason)
				return nil, &resp
			}
		}
	}

	for i := range chunks {
		chunks[i].Content = rag.SanitizeHTML(chunks[i].Content)
	}
	return chunks, nil
}

// screenerFor derives a screener honoring the snapshot policy's payload
// overrides, falling back to the gateway's default screener.
func (g *Gateway) screenerFor(pol domain.Policy, governed bool) *rag.Screener {
	if !governed || pol.Rule.RAGContext == nil {
		return g.screener
	}
	rule := pol.Rule.RAGContext
	if rule.RejectionThreshold == 0 && len(rule.AllowedSources) == 0 {
		return g.screener
	}

	opts := []rag.Option{}
	if rule.RejectionThreshold > 0 {
		opts = append(opts, rag.WithThreshold(rule.RejectionThreshold))
	}
	if len(rule.AllowedSources) > 0 {
		opts = append(opts, rag.WithAllowedSources(rule.AllowedSources))
	}
	return rag.NewScreener(opts...)
}

func assemblePrompt(prompt string, chunks []retrieval.Chunk) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, c := range chunks {
		b.WriteString("- ")
		b.WriteString(c.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(prompt)
	return b.String()
}

// ScreenDocument runs ingestion screening for one document. Accepted
// documents are indexed into the retrieval store; rejected documents are
// never persisted. A disabled governing policy accepts without screening,
// and dry-run records the would-be rejection while still accepting.
func (g *Gateway) ScreenDocument(ctx context.Context, content, source string) (domain.Document, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.screen_document")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return domain.Document{}, domain.Validation("content", fmt.Errorf("must not be empty"))
	}

	snap, err := g.policies.Snapshot(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("policy snapshot: %w", err)
	}
	pol, governed := snap.Lookup(domain.RuleRAGContext)

	doc := domain.Document{Content: content, Source: source, Verdict: domain.VerdictAccepted}

	if governed && pol.Enabled {
		v := g.screenerFor(pol, governed).ScreenDocument(content, source)
		doc.MatchedPatterns = v.MatchedPatterns
		doc.PatternCount = v.PatternCount
		if v.Rejected() {
			if pol.DryRun {
				g.append(ctx, domain.Event{
					Type:     domain.EventDocumentRejected,
					At:       g.now(),
					Metadata: map[string]string{"source": source, "advisory": "true", "reason": v.Reason},
				})
			} else {
				doc.Verdict = domain.VerdictRejected
				g.append(ctx, domain.Event{
					Type:     domain.EventDocumentRejected,
					At:       g.now(),
					Metadata: map[string]string{"source": source, "reason": v.Reason},
				})
			}
		}
	}

	documentCounter.WithLabelValues(string(doc.Verdict)).Inc()

	if doc.Verdict == domain.VerdictAccepted && g.search != nil {
		if _, err := g.search.Index(ctx, doc); err != nil {
			return domain.Document{}, fmt.Errorf("index document: %w", err)
		}
	}
	return doc, nil
}

// QueryResult is the outcome of screening and executing one retrieval
// query outside the mediation path.
type QueryResult struct {
	Blocked bool              `json:"blocked"`
	Reason  string            `json:"reason,omitempty"`
	Chunks  []retrieval.Chunk `json:"chunks,omitempty"`
}

// RetrieveQuery screens a standalone retrieval query and, when it passes,
// searches the store. Under a dry-run policy a blocked query records an
// advisory decision and the search still runs.
func (g *Gateway) RetrieveQuery(ctx context.Context, query string, k int) (QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return QueryResult{}, domain.Validation("query", fmt.Errorf("must not be empty"))
	}
	if k <= 0 {
		k = g.retrievalK
	}

	snap, err := g.policies.Snapshot(ctx)
	if err != nil {
		return QueryResult{}, fmt.Errorf("policy snapshot: %w", err)
	}
	pol, governed := snap.Lookup(domain.RuleRAGContext)

	if governed && pol.Enabled {
		if qv := g.screenerFor(pol, governed).ScreenQuery(query); qv.Blocked {
			meta := map[string]string{"patterns": strings.Join(qv.MatchedPatterns, ",")}
			if pol.DryRun {
				meta["advisory"] = "true"
			}
			g.append(ctx, domain.Event{
				Type:     domain.EventQueryBlocked,
				At:       g.now(),
				Metadata: meta,
			})
			if !pol.DryRun {
				return QueryResult{Blocked: true, Reason: qv.Reason}, nil
			}
			// Dry-run records the would-be block and proceeds.
			d := domain.Decision{
				Kind:       domain.DecisionAdvisoryDeny,
				Stage:      StageRetrievalScreening,
				PolicyName: pol.Name,
				Reason:     qv.Reason,
				At:         g.now(),
			}
			if err := g.events.AppendDecision(context.WithoutCancel(ctx), d); err != nil {
				g.logger.Warn("decision log append failed", "error", err)
			}
		}
	}

	if g.search == nil {
		return QueryResult{}, nil
	}
	chunks, err := g.search.Search(ctx, query, k, nil)
	if err != nil {
		return QueryResult{}, fmt.Errorf("search: %w", err)
	}
	for i := range chunks {
		chunks[i].Content = rag.SanitizeHTML(chunks[i].Content)
	}
	return QueryResult{Chunks: chunks}, nil
}

// ComputePosture derives the posture score for a principal from current
// policy state and its recorded events. Read-only; safe to run alongside
// request handling.
func (g *Gateway) ComputePosture(ctx context.Context, principalID string) (domain.PostureScore, error) {
	p, err := g.registry.GetPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			return domain.PostureScore{}, domain.Validation("principal_id", err)
		}
		return domain.PostureScore{}, fmt.Errorf("load principal: %w", err)
	}

	policies, err := g.policies.ListPolicies(ctx)
	if err != nil {
		return domain.PostureScore{}, fmt.Errorf("list policies: %w", err)
	}
	events, err := g.events.EventsFor(ctx, principalID)
	if err != nil {
		return domain.PostureScore{}, fmt.Errorf("load events: %w", err)
	}

	return posture.Compute(p, policies, events, g.now()), nil
}

// append writes an event to the log, detached from request cancellation.
// Log failures are logged and never fail the mediated request.
func (g *Gateway) append(ctx context.Context, e domain.Event) {
	if err := g.events.Append(context.WithoutCancel(ctx), e); err != nil {
		g.logger.Warn("event log append failed", "type", string(e.Type), "error", err)
	}
}

// mediation carries the per-request state shared by the stage helpers.
type mediation struct {
	g             *Gateway
	span          trace.Span
	traceID       string
	actor         string
	principal     domain.Principal
	snap          domain.PolicySnapshot
	redactions    []string
	contextChunks int
}

func (m *mediation) event(ctx context.Context, t domain.EventType, meta map[string]string) {
	m.g.append(ctx, domain.Event{
		Type:        t,
		PrincipalID: m.principal.ID,
		Actor:       m.actor,
		TraceID:     m.traceID,
		At:          m.g.now(),
		Metadata:    meta,
	})
}

func (m *mediation) recordRedaction(ctx context.Context, direction string, res dlp.Result) {
	m.redactions = mergeLabels(m.redactions, res.Labels)
	redactionCounter.WithLabelValues(direction).Add(float64(res.MatchCount))
	m.event(ctx, domain.EventRedactionApplied, map[string]string{
		"direction": direction,
		"labels":    strings.Join(res.Labels, ","),
	})
}

// terminal emits the single decision that ends the request.
func (m *mediation) terminal(ctx context.Context, kind domain.DecisionKind, stage, policyName, reason string) domain.Decision {
	d := domain.Decision{
		TraceID:     m.traceID,
		PrincipalID: m.principal.ID,
		Kind:        kind,
		Stage:       stage,
		PolicyName:  policyName,
		Reason:      reason,
		At:          m.g.now(),
	}

	if err := m.g.events.AppendDecision(context.WithoutCancel(ctx), d); err != nil {
		m.g.logger.Warn("decision log append failed", "trace_id", m.traceID, "error", err)
	}
	telemetry.RecordDecision(m.span, d)
	telemetry.RecordStageMetrics(ctx, telemetry.StageMetrics{
		PrincipalID: m.principal.ID,
		Stage:       stage,
		Outcome:     kind,
		Redactions:  len(m.redactions),
	})
	decisionCounter.WithLabelValues(string(kind), stage).Inc()
	return d
}

// advisory records a non-terminal would-be denial under a dry-run policy.
func (m *mediation) advisory(ctx context.Context, stage, policyName, reason string) {
	d := domain.Decision{
		TraceID:     m.traceID,
		PrincipalID: m.principal.ID,
		Kind:        domain.DecisionAdvisoryDeny,
		Stage:       stage,
		PolicyName:  policyName,
		Reason:      reason,
		At:          m.g.now(),
	}
	if err := m.g.events.AppendDecision(context.WithoutCancel(ctx), d); err != nil {
		m.g.logger.Warn("decision log append failed", "trace_id", m.traceID, "error", err)
	}
	telemetry.RecordDecision(m.span, d)
}

func (m *mediation) deny(ctx context.Context, stage, policyName, reason string) Response {
	d := m.terminal(ctx, domain.DecisionDeny, stage, policyName, reason)
	return Response{
		TraceID:    m.traceID,
		Redactions: m.redactions,
		Decision:   d,
	}
}

// fail records the terminal failed decision for an upstream error,
// including aborts from caller cancellation.
func (m *mediation) fail(ctx context.Context, err error) {
	m.terminal(ctx, domain.DecisionDeny, StageFailed, "", fmt.Sprintf("model call failed: %v", err))
	telemetry.RecordUpstreamFailure(ctx, domain.IsUpstreamTimeout(err))
}

func mergeLabels(into, labels []string) []string {
	seen := make(map[string]struct{}, len(into))
	for _, l := range into {
		seen[l] = struct{}{}
	}
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		into = append(into, l)
	}
	return into
}
