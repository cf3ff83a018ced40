// Package call implements the phone-call conversation engine.
//
// The handler receives provider callbacks, advances the per-call session
// (create, record a caller/assistant turn pair, remove on hang-up) and
// answers with a call-control document. The provider always receives a
// well-formed document, even when an upstream call fails.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nadzzz/farmline/internal/answer"
	"github.com/nadzzz/farmline/internal/config"
	"github.com/nadzzz/farmline/internal/locale"
	"github.com/nadzzz/farmline/internal/metrics"
	"github.com/nadzzz/farmline/internal/notify"
	"github.com/nadzzz/farmline/internal/session"
	"github.com/nadzzz/farmline/internal/tracing"
	"github.com/nadzzz/farmline/internal/tts"
	"github.com/nadzzz/farmline/internal/twiml"
)

const (
	// summaryPrefix starts every post-call SMS.
	summaryPrefix = "Call summary: "

	// maxSMSLength bounds the SMS body in characters.
	maxSMSLength = 1000
)

// Handler drives call sessions from provider callbacks.
type Handler struct {
	cfg       config.CallConfig
	store     session.Store
	locks     *session.Locker
	answers   answer.Service
	notifier  notify.Sender
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	publicURL string
}

// Option customizes a Handler.
type Option func(*Handler)

// WithMetrics records callback and upstream metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTracer replaces the global farmline tracer.
func WithTracer(t trace.Tracer) Option {
	return func(h *Handler) { h.tracer = t }
}

// WithPublicURL fixes the URL placed in Gather actions. Without it the URL is
// derived from each request.
func WithPublicURL(u string) Option {
	return func(h *Handler) { h.publicURL = u }
}

// NewHandler creates a Handler.
func NewHandler(cfg config.CallConfig, store session.Store, answers answer.Service, notifier notify.Sender, opts ...Option) *Handler {
	h := &Handler{
		cfg:      cfg,
		store:    store,
		locks:    session.NewLocker(),
		answers:  answers,
		notifier: notifier,
		tracer:   tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Greet returns the greeting document for a new call. An empty tag uses
// the configured default locale.
func (h *Handler) Greet(selfURL, tag string) []byte {
	h.metrics.Callback("greet", nil)
	if tag == "" {
		tag = h.cfg.DefaultLocale
	}
	return twiml.SayAndGather(h.cfg.Greeting, selfURL, tag)
}

// Process handles one validated callback and returns the document to send
// back with HTTP 200. It never panics.
func (h *Handler) Process(ctx context.Context, cb Callback, selfURL string) (doc []byte) {
	start := time.Now()
	kind := "turn"
	if cb.IsTerminal() {
		kind = "hangup"
	}

	logger := slog.With(
		"request_id", uuid.NewString(),
		"call_sid", cb.CallSid,
		"kind", kind,
		"direction", cb.Direction,
	)

	ctx, span := h.tracer.Start(ctx, "call."+kind, trace.WithAttributes(
		attribute.String("call.sid", cb.CallSid),
		attribute.String("call.status", cb.CallStatus),
	))
	defer span.End()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Error("callback panicked", "panic", r)
			doc = h.apology(cb)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		h.metrics.Callback(kind, err)
		logger.Info("callback complete", "duration", time.Since(start), "error", err != nil)
	}()

	if cb.IsTerminal() {
		return h.hangup(ctx, logger, cb)
	}
	doc, err = h.turn(ctx, logger, cb, selfURL)
	if err != nil {
		logger.Error("turn failed", "error", err)
		return h.apology(cb)
	}
	return doc
}

// turn records one caller/assistant exchange and returns the reply document.
func (h *Handler) turn(ctx context.Context, logger *slog.Logger, cb Callback, selfURL string) ([]byte, error) {
	unlock := h.locks.Lock(cb.CallSid)
	defer unlock()

	lang := locale.ResolveOr(cb.Language, h.cfg.DefaultLanguage)
	sess, created := h.store.GetOrCreate(cb.CallSid, lang.Name, cb.From)
	if created {
		h.metrics.SessionStarted()
		h.metrics.SetActive(h.store.Len())
		logger.Info("session started", "language", sess.Language, "has_caller_number", sess.HasCallerNumber())
	}

	question := cb.Utterance(h.cfg.GreetingPlaceholder)
	logger.Debug("answering", "language", sess.Language, "history", len(sess.History), "question_length", len(question))

	actx, cancel := context.WithTimeout(ctx, h.cfg.AnswerTimeout)
	defer cancel()

	start := time.Now()
	res, err := h.answers.Answer(actx, answer.Request{
		CallID:   cb.CallSid,
		Question: question,
		Language: sess.Language,
		History:  sess.History,
	})
	if err == nil && (res == nil || strings.TrimSpace(res.Text) == "") {
		err = errors.New("empty answer")
	}
	h.metrics.Upstream("answer", start, err)
	if err != nil {
		return nil, fmt.Errorf("answering: %w", err)
	}

	if err := h.store.Append(cb.CallSid, session.CallerTurn(question), session.AssistantTurn(res.Text)); err != nil {
		return nil, fmt.Errorf("recording turn: %w", err)
	}
	h.metrics.TurnRecorded()
	logger.Info("turn recorded", "history", len(sess.History)+2, "audio_bytes", len(res.Audio))

	recognition := h.recognitionLocale(cb)
	if res.HasAudio() {
		return twiml.PlayAndGather(tts.DataURI(res.ContentType, res.Audio), selfURL, recognition), nil
	}
	return twiml.SayAndGather(res.Text, selfURL, recognition), nil
}

// hangup removes the session and, when the call had a real exchange, texts
// the caller a summary. Follow-up failures are logged only.
func (h *Handler) hangup(ctx context.Context, logger *slog.Logger, cb Callback) []byte {
	sess, ok := h.take(cb.CallSid)
	if !ok {
		logger.Debug("no session for terminal callback", "status", cb.CallStatus)
		return twiml.HangupDoc()
	}
	h.metrics.SetActive(h.store.Len())
	logger.Info("session ended", "status", cb.CallStatus, "turns", len(sess.History), "duration", time.Since(sess.StartedAt))

	to := sess.CallerNumber
	if to == "" {
		to = cb.From
	}
	h.followUp(context.WithoutCancel(ctx), logger, sess, to)
	return twiml.HangupDoc()
}

// take removes and returns the session under the call's lock.
func (h *Handler) take(callID string) (*session.CallSession, bool) {
	unlock := h.locks.Lock(callID)
	defer unlock()
	sess, ok := h.store.Get(callID)
	h.store.Remove(callID)
	return sess, ok
}

func (h *Handler) followUp(ctx context.Context, logger *slog.Logger, sess *session.CallSession, to string) {
	if len(sess.History) <= 1 || to == "" {
		h.metrics.SMSResult("skipped")
		logger.Debug("summary skipped", "turns", len(sess.History), "has_caller_number", to != "")
		return
	}

	sctx, cancel := context.WithTimeout(ctx, h.cfg.SummaryTimeout)
	start := time.Now()
	summary, err := h.answers.Summarize(sctx, sess.History, sess.Language)
	cancel()
	h.metrics.Upstream("summarize", start, err)
	if err != nil {
		h.metrics.SMSResult("error")
		logger.Error("summarization failed", "error", err)
		return
	}

	body := notify.Truncate(summaryPrefix+strings.TrimSpace(summary), maxSMSLength)

	nctx, cancel := context.WithTimeout(ctx, h.cfg.SMSTimeout)
	defer cancel()
	start = time.Now()
	err = h.notifier.Send(nctx, notify.Message{To: to, Body: body})
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		h.metrics.SMSResult("unconfigured")
		logger.Warn("sms skipped, provider not configured")
	case err != nil:
		h.metrics.Upstream("sms", start, err)
		h.metrics.SMSResult("error")
		logger.Error("sms failed", "to", notify.MaskPhone(to), "error", err)
	default:
		h.metrics.Upstream("sms", start, nil)
		h.metrics.SMSResult("sent")
		logger.Info("sms sent", "to", notify.MaskPhone(to), "length", len([]rune(body)))
	}
}

// ExpireIdle drops sessions whose hang-up callback never arrived and that
// have been idle for longer than maxIdle. Expired calls get no SMS.
func (h *Handler) ExpireIdle(maxIdle time.Duration) int {
	expired := h.store.Expire(maxIdle)
	if len(expired) == 0 {
		return 0
	}
	for _, s := range expired {
		slog.Warn("session expired without hang-up",
			"call_sid", s.CallID,
			"turns", len(s.History),
			"idle", time.Since(s.LastActivity).Round(time.Second))
	}
	h.metrics.SessionsExpiredAdd(len(expired))
	h.metrics.SetActive(h.store.Len())
	return len(expired)
}

// SweepIdle expires idle sessions every SweepInterval until ctx is done.
func (h *Handler) SweepIdle(ctx context.Context) error {
	if h.cfg.SweepInterval <= 0 || h.cfg.SessionTTL <= 0 {
		return nil
	}
	ticker := time.NewTicker(h.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.ExpireIdle(h.cfg.SessionTTL)
		}
	}
}

func (h *Handler) apology(cb Callback) []byte {
	return twiml.Apology(h.cfg.Apology, h.recognitionLocale(cb))
}

func (h *Handler) recognitionLocale(cb Callback) string {
	if cb.Language != "" {
		return cb.Language
	}
	return h.cfg.DefaultLocale
}

// SelfURL is the absolute URL the provider should call back on.
func (h *Handler) SelfURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host = strings.TrimSpace(strings.Split(fh, ",")[0])
	}
	return scheme + "://" + host + r.URL.Path
}
