package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/cinequery/internal/domain/audit"
	"github.com/rpggio/cinequery/internal/domain/movie"
	"github.com/rpggio/cinequery/internal/domain/query"
)

// Service sequences translation, validation, execution and synthesis for
// each request. It holds no per-request state and is safe for concurrent use.
type Service struct {
	translator  Translator
	synthesizer Synthesizer
	executor    Executor
	audit       AuditRecorder
	logger      *slog.Logger
	callTimeout time.Duration
	now         func() time.Time
}

// NewService creates a new pipeline service.
func NewService(translator Translator, synthesizer Synthesizer, executor Executor, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Service{
		translator:  translator,
		synthesizer: synthesizer,
		executor:    executor,
		logger:      logger,
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers a natural-language question. Failures are returned as *Error.
func (s *Service) Ask(ctx context.Context, req Request) (*Response, error) {
	r := s.begin(req)
	resp, err := s.ask(ctx, r)
	s.finish(ctx, r, resp, err)
	return resp, err
}

// Search validates candidate as a structured query and executes it without
// translation or synthesis.
func (s *Service) Search(ctx context.Context, req Request, candidate any) (*Response, error) {
	r := s.begin(req)
	resp, err := s.search(r, candidate)
	s.finish(ctx, r, resp, err)
	return resp, err
}

func (s *Service) ask(ctx context.Context, r *run) (*Response, error) {
	question := strings.TrimSpace(r.req.Question)
	if question == "" {
		return nil, r.fail(CodeInvalidRequest, msgEmptyQuestion, ErrInvalidRequest)
	}

	tr := TranslateRequest{Question: question, Schema: query.SchemaDescription()}
	var (
		q      query.StructuredQuery
		report query.Report
	)
	for {
		r.enter(StageTranslating)
		r.attempts++
		raw, err := s.call(ctx, func(callCtx context.Context) (string, error) {
			return s.translator.Translate(callCtx, tr)
		})
		if err != nil {
			return nil, r.external(ctx, err, CodeTranslationFailure, msgTranslation)
		}

		r.enter(StageValidating)
		q, report, err = query.ValidateJSON(raw)
		if err == nil {
			break
		}
		if r.attempts >= MaxTranslationAttempts {
			failed := r.fail(CodeTranslationFailure, msgMalformed, err)
			failed.LLMOutput = raw
			return nil, failed
		}
		r.logger.Info("translation output unparseable, retrying", "attempt", r.attempts, "error", err)
		tr.PreviousOutput = raw
		tr.PreviousError = schemaReason(err)
	}

	resp, err := s.execute(r, q, report)
	if err != nil {
		return nil, err
	}
	resp.Question = question
	if len(resp.Movies) == 0 {
		resp.Answer = noMatchAnswer
		r.enter(StageDone)
		return resp, nil
	}

	r.enter(StageSynthesizing)
	grounded := cloneMovies(resp.Movies)
	answer, err := s.call(ctx, func(callCtx context.Context) (string, error) {
		return s.synthesizer.Synthesize(callCtx, question, grounded)
	})
	if err == nil && strings.TrimSpace(answer) == "" {
		err = errors.New("empty answer")
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(CodeCanceled, msgCanceled, ctx.Err())
		}
		r.logger.Warn("synthesis failed, returning fallback answer", "error", err)
		resp.Answer = FallbackAnswer(resp.Movies)
		resp.Degraded = true
	} else {
		resp.Answer = strings.TrimSpace(answer)
	}

	r.enter(StageDone)
	return resp, nil
}

func (s *Service) search(r *run, candidate any) (*Response, error) {
	r.enter(StageValidating)
	q, report, err := query.Validate(candidate)
	if err != nil {
		return nil, r.fail(CodeInvalidRequest, "Search arguments must be an object.", err)
	}
	resp, err := s.execute(r, q, report)
	if err != nil {
		return nil, err
	}
	resp.Question = r.req.Question
	if len(resp.Movies) == 0 {
		resp.Answer = noMatchAnswer
	}
	r.enter(StageDone)
	return resp, nil
}

func (s *Service) execute(r *run, q query.StructuredQuery, report query.Report) (*Response, error) {
	r.query = &q
	r.report = report
	if !report.Clean() {
		r.logger.Info("structured query repaired",
			"repairs", len(report.Repairs),
			"dropped", len(report.Dropped),
			"ignored", report.Ignored,
		)
	}

	r.enter(StageExecuting)
	result, err := s.executor.Execute(q)
	if err != nil {
		return nil, r.fail(CodeExecutionFault, msgExecution, err)
	}
	r.result = result

	return &Response{
		RequestID:      r.req.RequestID,
		Query:          result.Query,
		Report:         report,
		Movies:         result.Movies,
		Matched:        result.Matched,
		Attempts:       r.attempts,
		DatasetVersion: result.DatasetVersion,
	}, nil
}

// call issues one external call. The call runs detached from ctx so a client
// disconnect does not abort it; its result is discarded if ctx is done by the
// time it returns.
func (s *Service) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
	defer cancel()

	out, err := fn(callCtx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrNetwork) {
		err = fmt.Errorf("%w: timed out after %s: %w", ErrNetwork, s.callTimeout, err)
	}
	return out, err
}

func (s *Service) begin(req Request) *run {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return &run{
		req:     req,
		started: s.now(),
		logger:  s.logger.With("request_id", req.RequestID, "channel", req.Channel),
	}
}

func (s *Service) finish(ctx context.Context, r *run, resp *Response, err error) {
	elapsed := s.now().Sub(r.started)

	entry := &audit.Entry{
		RequestID:  r.req.RequestID,
		ClientID:   r.req.ClientID,
		Channel:    r.req.Channel,
		Question:   r.req.Question,
		Outcome:    audit.OutcomeDone,
		Attempts:   r.attempts,
		Repairs:    len(r.report.Repairs) + len(r.report.Dropped),
		DurationMS: elapsed.Milliseconds(),
	}
	if r.query != nil {
		if data, marshalErr := json.Marshal(r.query); marshalErr == nil {
			entry.Query = string(data)
		}
	}
	if r.result != nil {
		entry.Matched = r.result.Matched
		entry.Returned = len(r.result.Movies)
		entry.DatasetVersion = r.result.DatasetVersion
	}

	if err != nil {
		entry.Outcome = audit.OutcomeFailed
		entry.Code = string(CodeOf(err))
		level := slog.LevelWarn
		if CodeOf(err) == CodeExecutionFault {
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "query failed", "code", entry.Code, "attempts", r.attempts, "duration", elapsed, "error", err)
	} else {
		entry.Degraded = resp.Degraded
		r.logger.Info("query answered",
			"matched", entry.Matched,
			"returned", entry.Returned,
			"attempts", r.attempts,
			"degraded", resp.Degraded,
			"duration", elapsed,
		)
	}

	if s.audit == nil {
		return
	}
	if auditErr := s.audit.Record(context.WithoutCancel(ctx), entry); auditErr != nil {
		r.logger.Error("failed to record audit entry", "error", auditErr)
	}
}

// run tracks one request through the state machine.
type run struct {
	req      Request
	started  time.Time
	stage    Stage
	attempts int
	query    *query.StructuredQuery
	report   query.Report
	result   *query.Result
	logger   *slog.Logger
}

func (r *run) enter(stage Stage) {
	r.stage = stage
	r.logger.Debug("pipeline stage", "stage", stage, "attempt", r.attempts)
}

func (r *run) fail(code Code, message string, err error) *Error {
	failed := &Error{Code: code, Stage: r.stage, Message: message, Err: err}
	r.stage = StageFailed
	return failed
}

// external classifies a failed external call.
func (r *run) external(ctx context.Context, err error, code Code, message string) *Error {
	switch {
	case ctx.Err() != nil:
		return r.fail(CodeCanceled, msgCanceled, err)
	case errors.Is(err, ErrNetwork):
		return r.fail(CodeNetworkFailure, msgNetwork, err)
	default:
		return r.fail(code, message, err)
	}
}

func schemaReason(err error) string {
	var schemaErr *query.SchemaError
	if errors.As(err, &schemaErr) {
		return schemaErr.Reason
	}
	return err.Error()
}

// FallbackAnswer lists the records when no synthesized answer is available.
// It states only facts present in movies.
func FallbackAnswer(movies []movie.Movie) string {
	var b strings.Builder
	b.WriteString(fallbackAnswerLead)
	for i, m := range movies {
		fmt.Fprintf(&b, "\n%d. %s (%d), rated %.1f", i+1, m.Title, m.Year, m.Rating)
		if m.Director != "" {
			fmt.Fprintf(&b, ", directed by %s", m.Director)
		}
	}
	return b.String()
}

func cloneMovies(movies []movie.Movie) []movie.Movie {
	out := make([]movie.Movie, len(movies))
	for i, m := range movies {
		out[i] = m.Clone()
	}
	return out
}
