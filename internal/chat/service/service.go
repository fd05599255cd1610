// Package service orchestrates one chat message through the admission path:
// sanitize and validate, authorize ownership, check the rate limit, call the
// upstream model, and persist the exchange. Every early exit maps to one
// wire error; validation, authorization, and admission failures persist
// nothing, while upstream failures persist a Failed exchange so the message
// log never holds an unexplained dangling user message.
package service

import (
	"context"
	"errors"
	"log/slog"

	"cortex/internal/chat/models"
	ratelimit "cortex/internal/ratelimit/config"
	rlmodels "cortex/internal/ratelimit/models"
	id "cortex/pkg/domain"
	dErrors "cortex/pkg/domain-errors"
	"cortex/pkg/requestcontext"
	"cortex/pkg/tracer"
)

// ChatStore is the persistence surface the orchestrator needs.
type ChatStore interface {
	OwnerOf(ctx context.Context, chatID id.ChatID) (id.UserID, error)
	AppendExchange(ctx context.Context, exchange *models.Exchange) error
}

// Admitter runs the sliding-window admission check.
type Admitter interface {
	Check(ctx context.Context, userID id.UserID, featureKey string) (*rlmodels.Result, error)
}

// Completer produces one assistant reply. A nil Completer means the upstream
// is not configured; requests answer 503 without dialing out.
type Completer interface {
	Complete(ctx context.Context, knowledgeContext, userMessage string) (string, error)
}

// ContextBuilder assembles the knowledge excerpt for the system prompt.
type ContextBuilder interface {
	Build(ctx context.Context, ownerID id.UserID) string
}

// RateLimitedError carries the denial result so the transport layer can set
// Retry-After and X-RateLimit-Remaining headers.
type RateLimitedError struct {
	Result *rlmodels.Result
}

func (e *RateLimitedError) Error() string {
	return "Rate limit exceeded. Please try again later."
}

// Reply is the successful outcome of one message cycle.
type Reply struct {
	Message   string
	Remaining int
}

// Service orchestrates the chat message state machine.
type Service struct {
	store          ChatStore
	admitter       Admitter
	completer      Completer
	contextBuilder ContextBuilder
	logger         *slog.Logger
	tracer         tracer.Tracer
}

// Option configures a Service instance.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCompleter sets the upstream client. Leaving it unset models missing
// upstream credentials.
func WithCompleter(completer Completer) Option {
	return func(s *Service) {
		s.completer = completer
	}
}

func WithContextBuilder(builder ContextBuilder) Option {
	return func(s *Service) {
		s.contextBuilder = builder
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New creates the chat orchestrator.
func New(store ChatStore, admitter Admitter, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("chat store is required")
	}
	if admitter == nil {
		return nil, errors.New("admitter is required")
	}

	svc := &Service{
		store:    store,
		admitter: admitter,
		tracer:   tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SendMessage runs one request through the full state machine. The request
// is sanitized in place; the sanitized text is what gets persisted and sent
// upstream.
func (s *Service) SendMessage(ctx context.Context, userID id.UserID, req *models.ChatMessageRequest) (reply *Reply, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanChatMessage)
	defer func() { span.End(err) }()

	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Authentication required")
	}

	// Validated
	req.Sanitize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	chatID, err := req.ParsedChatID()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrChatID, chatID.String()))

	// Authorized. Missing chat and foreign chat collapse into one error so
	// the response never reveals whether the chat exists.
	if err := s.authorize(ctx, chatID, userID); err != nil {
		return nil, err
	}

	// Admitted
	admission, err := s.admit(ctx, userID, span)
	if err != nil {
		return nil, err
	}

	// UpstreamCalled
	if s.completer == nil {
		return nil, dErrors.New(dErrors.CodeUpstreamConfig, "AI service not available")
	}

	var knowledgeContext string
	if s.contextBuilder != nil {
		knowledgeContext = s.contextBuilder.Build(ctx, userID)
	}

	now := requestcontext.Now(ctx)
	answer, upstreamErr := s.completer.Complete(ctx, knowledgeContext, req.Message)
	if upstreamErr != nil {
		// Persisted (failure variant): keep the user message with the reason.
		failed := models.NewFailedExchange(chatID, req.Message, failureReason(upstreamErr), now)
		if persistErr := s.store.AppendExchange(ctx, failed); persistErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to persist failed exchange",
				"chat_id", chatID.String(),
				"error", persistErr,
			)
		}
		return nil, wireUpstreamError(upstreamErr)
	}

	// Persisted (success variant): user and assistant messages as one row.
	completed := models.NewCompletedExchange(chatID, req.Message, answer, now)
	if err := s.store.AppendExchange(ctx, completed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "An unexpected error occurred. Please try again.")
	}

	// Responded
	return &Reply{
		Message:   answer,
		Remaining: admission.Remaining,
	}, nil
}

func (s *Service) authorize(ctx context.Context, chatID id.ChatID, userID id.UserID) error {
	denied := dErrors.New(dErrors.CodeForbidden, "Chat not found or access denied")

	owner, err := s.store.OwnerOf(ctx, chatID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return denied
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "An unexpected error occurred. Please try again.")
	}
	if owner != userID {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "chat access denied",
				"chat_id", chatID.String(),
				"user_id", userID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return denied
	}
	return nil
}

func (s *Service) admit(ctx context.Context, userID id.UserID, span tracer.Span) (*rlmodels.Result, error) {
	ctx, admissionSpan := s.tracer.Start(ctx, tracer.SpanAdmission,
		tracer.String(tracer.AttrFeature, ratelimit.FeatureChat),
	)

	result, err := s.admitter.Check(ctx, userID, ratelimit.FeatureChat)
	if err != nil {
		admissionSpan.End(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "An unexpected error occurred. Please try again.")
	}
	admissionSpan.SetAttributes(
		tracer.Bool(tracer.AttrAllowed, result.Allowed),
		tracer.Int(tracer.AttrRemaining, result.Remaining),
	)
	admissionSpan.End(nil)

	span.SetAttributes(tracer.Bool(tracer.AttrAllowed, result.Allowed))

	if !result.Allowed {
		return nil, &RateLimitedError{Result: result}
	}
	return result, nil
}

// failureReason is the stored, internal-facing reason on a Failed exchange.
func failureReason(err error) string {
	switch {
	case dErrors.HasCode(err, dErrors.CodeUpstreamTimeout):
		return "upstream timed out"
	case dErrors.HasCode(err, dErrors.CodeEmptyCompletion):
		return "upstream returned an empty completion"
	default:
		return "upstream request failed"
	}
}

// wireUpstreamError converts upstream failures into the exact wire messages
// the API promises. Codes pass through so the transport maps 503 vs 504.
func wireUpstreamError(err error) error {
	switch {
	case dErrors.HasCode(err, dErrors.CodeUpstreamTimeout):
		return dErrors.Wrap(err, dErrors.CodeUpstreamTimeout, "AI service request timed out")
	case dErrors.HasCode(err, dErrors.CodeUpstreamConfig):
		return dErrors.Wrap(err, dErrors.CodeUpstreamConfig, "AI service not available")
	default:
		return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "AI service temporarily unavailable")
	}
}
