package call

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/farmline/internal/answer"
	"github.com/nadzzz/farmline/internal/config"
	"github.com/nadzzz/farmline/internal/metrics"
	"github.com/nadzzz/farmline/internal/notify"
	"github.com/nadzzz/farmline/internal/session"
	"github.com/nadzzz/farmline/internal/twiml"
)

type fakeAnswers struct {
	mu        sync.Mutex
	requests  []answer.Request
	summaries [][]session.Turn
	audio     bool
	err       error
	panicMsg  string
	summary   string
	sumErr    error
	started   chan struct{}
	release   chan struct{}
}

func (f *fakeAnswers) Answer(ctx context.Context, req answer.Request) (*answer.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	started, release := f.started, f.release
	err, panicMsg, audio := f.err, f.panicMsg, f.audio
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err != nil {
		return nil, err
	}
	res := &answer.Result{Text: "Reply to: " + req.Question}
	if audio {
		res.Audio = []byte("RIFFfakewav")
		res.ContentType = "audio/wav"
	}
	return res, nil
}

func (f *fakeAnswers) Summarize(_ context.Context, history []session.Turn, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, history)
	if f.sumErr != nil {
		return "", f.sumErr
	}
	if f.summary != "" {
		return f.summary, nil
	}
	return "You asked about wheat.", nil
}

func (f *fakeAnswers) languages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Language)
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNotifier) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.sent...)
}

func callConfig() config.CallConfig {
	return config.CallConfig{
		DefaultLanguage:     "English",
		DefaultLocale:       "en-IN",
		Greeting:            "Welcome to the farmer helpline.",
		GreetingPlaceholder: "Hello",
		Apology:             "Sorry, please call again later.",
		AnswerTimeout:       2 * time.Second,
		SummaryTimeout:      2 * time.Second,
		SMSTimeout:          2 * time.Second,
	}
}

type fixture struct {
	store    *session.MemoryStore
	answers  *fakeAnswers
	notifier *fakeNotifier
	metrics  *metrics.Metrics
	handler  *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    session.NewMemoryStore(),
		answers:  &fakeAnswers{audio: true},
		notifier: &fakeNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.handler = NewHandler(callConfig(), f.store, f.answers, f.notifier, WithMetrics(f.metrics))
	return f
}

const self = "https://farm.example/api/call"

func parseDoc(t *testing.T, doc []byte) twiml.Response {
	t.Helper()
	var r twiml.Response
	require.NoError(t, xml.Unmarshal(doc, &r), string(doc))
	return r
}

func TestProcess_TurnsAlternate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 4
	for i := 0; i < n; i++ {
		doc := f.handler.Process(ctx, Callback{CallSid: "CA1", SpeechResult: "question"}, self)
		r := parseDoc(t, doc)
		require.NotNil(t, r.Play)
		require.NotNil(t, r.Gather)
		assert.Nil(t, r.Hangup)
	}

	sess, ok := f.store.Get("CA1")
	require.True(t, ok)
	assert.Len(t, sess.History, 2*n)
	assert.True(t, session.Alternates(sess.History))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Turns))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsStarted))

	// Each request carried the history preceding the question.
	f.answers.mu.Lock()
	defer f.answers.mu.Unlock()
	for i, req := range f.answers.requests {
		assert.Len(t, req.History, 2*i)
	}
}

func TestProcess_PlaceholderAndDigits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.Process(ctx, Callback{CallSid: "CA1"}, self)
	f.handler.Process(ctx, Callback{CallSid: "CA1", Digits: "2"}, self)

	sess, _ := f.store.Get("CA1")
	require.Len(t, sess.History, 4)
	assert.Equal(t, session.CallerTurn("Hello"), sess.History[0])
	assert.Equal(t, session.CallerTurn("2"), sess.History[2])
}

func TestProcess_LanguageResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.Process(ctx, Callback{CallSid: "A", SpeechResult: "q"}, self)
	f.handler.Process(ctx, Callback{CallSid: "B", SpeechResult: "q", Language: "hi-IN"}, self)
	f.handler.Process(ctx, Callback{CallSid: "C", SpeechResult: "q", Language: "xx-YY"}, self)

	assert.Equal(t, []string{"English", "Hindi", "English"}, f.answers.languages())

	sess, _ := f.store.Get("B")
	assert.Equal(t, "Hindi", sess.Language)
}

func TestProcess_RecognitionLocale(t *testing.T) {
	f := newFixture(t)

	r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "A", SpeechResult: "q", Language: "ta-IN"}, self))
	assert.Equal(t, "ta-IN", r.Gather.Language)

	r = parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "B", SpeechResult: "q"}, self))
	assert.Equal(t, "en-IN", r.Gather.Language)
}

func TestProcess_TextOnlyFallsBackToSay(t *testing.T) {
	f := newFixture(t)
	f.answers.audio = false

	r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "rain?"}, self))
	assert.Nil(t, r.Play)
	require.NotNil(t, r.Say)
	assert.Equal(t, "Reply to: rain?", r.Say.Text)
	require.NotNil(t, r.Gather)
	assert.Equal(t, self, r.Gather.Action)
}

func TestProcess_AnswerFailureApologizes(t *testing.T) {
	f := newFixture(t)
	f.answers.err = errors.New("model unavailable")

	r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q"}, self))
	require.NotNil(t, r.Say)
	assert.Equal(t, "Sorry, please call again later.", r.Say.Text)
	assert.NotNil(t, r.Hangup)
	assert.Nil(t, r.Gather)

	sess, ok := f.store.Get("CA1")
	require.True(t, ok)
	assert.Empty(t, sess.History)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues("turn", "error")))
}

func TestProcess_PanicApologizes(t *testing.T) {
	f := newFixture(t)
	f.answers.panicMsg = "nil map"

	var doc []byte
	require.NotPanics(t, func() {
		doc = f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q"}, self)
	})
	r := parseDoc(t, doc)
	assert.NotNil(t, r.Say)
	assert.NotNil(t, r.Hangup)

	// The per-call lock was released.
	f.answers.panicMsg = ""
	r = parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q"}, self))
	assert.NotNil(t, r.Play)
}

func TestProcess_AnswerTimeout(t *testing.T) {
	f := newFixture(t)
	cfg := callConfig()
	cfg.AnswerTimeout = 20 * time.Millisecond
	slow := &slowAnswers{}
	h := NewHandler(cfg, f.store, slow, f.notifier)

	start := time.Now()
	r := parseDoc(t, h.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q"}, self))
	assert.Less(t, time.Since(start), time.Second)
	assert.NotNil(t, r.Hangup)
}

type slowAnswers struct{ fakeAnswers }

func (s *slowAnswers) Answer(ctx context.Context, _ answer.Request) (*answer.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcess_Hangup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.Process(ctx, Callback{CallSid: "CA1", SpeechResult: "wheat price?", From: "+911234567890"}, self)
	r := parseDoc(t, f.handler.Process(ctx, Callback{CallSid: "CA1", CallStatus: "completed"}, self))
	assert.NotNil(t, r.Hangup)
	assert.Nil(t, r.Gather)

	_, ok := f.store.Get("CA1")
	assert.False(t, ok)

	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "+911234567890", sent[0].To)
	assert.Equal(t, "Call summary: You asked about wheat.", sent[0].Body)

	require.Len(t, f.answers.summaries, 1)
	assert.Len(t, f.answers.summaries[0], 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SMS.WithLabelValues("sent")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.ActiveSessions))
}

func TestProcess_HangupTerminalStatuses(t *testing.T) {
	for _, status := range []string{"completed", "failed", "busy", "no-answer", "Completed"} {
		t.Run(status, func(t *testing.T) {
			f := newFixture(t)
			f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q"}, self)
			r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: status}, self))
			assert.NotNil(t, r.Hangup)
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestProcess_NonTerminalStatusIsTurn(t *testing.T) {
	f := newFixture(t)
	r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "in-progress", SpeechResult: "q"}, self))
	assert.NotNil(t, r.Gather)
	assert.Equal(t, 1, f.store.Len())
}

func TestProcess_HangupWithoutSession(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "ghost", CallStatus: "completed", From: "+911234567890"}, self))
		assert.NotNil(t, r.Hangup)
	}
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.notifier.messages())
	assert.Empty(t, f.answers.summaries)
}

func TestProcess_NoSMSWithoutExchange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The only turn failed, so nothing was recorded.
	f.answers.err = errors.New("down")
	f.handler.Process(ctx, Callback{CallSid: "CA1", From: "+911234567890"}, self)
	f.handler.Process(ctx, Callback{CallSid: "CA1", CallStatus: "completed", From: "+911234567890"}, self)

	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.notifier.messages())
	assert.Empty(t, f.answers.summaries)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SMS.WithLabelValues("skipped")))
}

func TestProcess_NoSMSWithoutCallerNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.handler.Process(ctx, Callback{CallSid: "CA1", SpeechResult: "q"}, self)
	f.handler.Process(ctx, Callback{CallSid: "CA1", CallStatus: "completed"}, self)

	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.notifier.messages())
}

func TestProcess_FollowUpFailuresStillRemove(t *testing.T) {
	t.Run("summary", func(t *testing.T) {
		f := newFixture(t)
		f.answers.sumErr = errors.New("summary down")
		f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q", From: "+911234567890"}, self)
		r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "completed"}, self))
		assert.NotNil(t, r.Hangup)
		assert.Equal(t, 0, f.store.Len())
		assert.Empty(t, f.notifier.messages())
	})

	t.Run("sms", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.err = errors.New("exotel down")
		f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q", From: "+911234567890"}, self)
		r := parseDoc(t, f.handler.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "completed"}, self))
		assert.NotNil(t, r.Hangup)
		assert.Equal(t, 0, f.store.Len())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SMS.WithLabelValues("error")))
	})

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t)
		f.notifier.err = notify.ErrNotConfigured
		f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q", From: "+911234567890"}, self)
		f.handler.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "completed"}, self)
		assert.Equal(t, 0, f.store.Len())
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SMS.WithLabelValues("unconfigured")))
	})
}

type stalledSummaries struct{ fakeAnswers }

func (s *stalledSummaries) Summarize(ctx context.Context, _ []session.Turn, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type stalledNotifier struct{}

func (stalledNotifier) Send(ctx context.Context, _ notify.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestProcess_SummaryTimeout(t *testing.T) {
	f := newFixture(t)
	cfg := callConfig()
	cfg.SummaryTimeout = 20 * time.Millisecond
	h := NewHandler(cfg, f.store, &stalledSummaries{fakeAnswers{audio: true}}, f.notifier, WithMetrics(f.metrics))

	h.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q", From: "+911234567890"}, self)

	start := time.Now()
	r := parseDoc(t, h.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "completed"}, self))
	assert.Less(t, time.Since(start), time.Second)
	assert.NotNil(t, r.Hangup)
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.notifier.messages())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SMS.WithLabelValues("error")))
}

func TestProcess_SMSTimeout(t *testing.T) {
	f := newFixture(t)
	cfg := callConfig()
	cfg.SMSTimeout = 20 * time.Millisecond
	h := NewHandler(cfg, f.store, f.answers, stalledNotifier{}, WithMetrics(f.metrics))

	h.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q", From: "+911234567890"}, self)

	start := time.Now()
	r := parseDoc(t, h.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "completed"}, self))
	assert.Less(t, time.Since(start), time.Second)
	assert.NotNil(t, r.Hangup)
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SMS.WithLabelValues("error")))
}

// flakyStore panics on the first Remove.
type flakyStore struct {
	*session.MemoryStore
	once sync.Once
}

func (s *flakyStore) Remove(callID string) {
	s.once.Do(func() { panic("store unavailable") })
	s.MemoryStore.Remove(callID)
}

func TestProcess_HangupPanicReleasesLock(t *testing.T) {
	f := newFixture(t)
	st := &flakyStore{MemoryStore: f.store}
	h := NewHandler(callConfig(), st, f.answers, f.notifier, WithMetrics(f.metrics))
	ctx := context.Background()

	h.Process(ctx, Callback{CallSid: "CA1", SpeechResult: "q"}, self)

	var doc []byte
	require.NotPanics(t, func() {
		doc = h.Process(ctx, Callback{CallSid: "CA1", CallStatus: "completed"}, self)
	})
	assert.NotNil(t, parseDoc(t, doc).Hangup)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Process(ctx, Callback{CallSid: "CA1", CallStatus: "completed"}, self)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("call lock still held after a panicking hang-up")
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestExpireIdle(t *testing.T) {
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := session.NewMemoryStore(session.WithClock(func() time.Time { return clock }))
	answers, notifier := &fakeAnswers{audio: true}, &fakeNotifier{}
	m := metrics.New(prometheus.NewRegistry())
	h := NewHandler(callConfig(), store, answers, notifier, WithMetrics(m))
	ctx := context.Background()

	h.Process(ctx, Callback{CallSid: "abandoned", SpeechResult: "q", From: "+911234567890"}, self)
	clock = clock.Add(3 * time.Hour)
	h.Process(ctx, Callback{CallSid: "live", SpeechResult: "q"}, self)

	assert.Equal(t, 1, h.ExpireIdle(2*time.Hour))
	_, ok := store.Get("abandoned")
	assert.False(t, ok)
	_, ok = store.Get("live")
	assert.True(t, ok)
	assert.Empty(t, notifier.messages())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))

	assert.Equal(t, 0, h.ExpireIdle(2*time.Hour))
}

func TestSweepIdle(t *testing.T) {
	f := newFixture(t)
	cfg := callConfig()
	cfg.SessionTTL = time.Millisecond
	cfg.SweepInterval = 5 * time.Millisecond
	h := NewHandler(cfg, f.store, f.answers, f.notifier, WithMetrics(f.metrics))

	h.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q"}, self)
	require.Equal(t, 1, f.store.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.SweepIdle(ctx) }()

	require.Eventually(t, func() bool { return f.store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("SweepIdle did not stop")
	}

	// Without an interval the sweeper returns at once.
	assert.NoError(t, NewHandler(callConfig(), f.store, f.answers, f.notifier).SweepIdle(context.Background()))
}

func TestProcess_SummaryTruncated(t *testing.T) {
	f := newFixture(t)
	f.answers.summary = strings.Repeat("a", 2000)

	f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q", From: "+911234567890"}, self)
	f.handler.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "completed"}, self)

	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Len(t, []rune(sent[0].Body), maxSMSLength)
	assert.True(t, strings.HasPrefix(sent[0].Body, summaryPrefix))
	assert.True(t, strings.HasSuffix(sent[0].Body, "..."))
}

func TestProcess_HangupWaitsForInFlightTurn(t *testing.T) {
	f := newFixture(t)
	f.answers.started = make(chan struct{}, 1)
	f.answers.release = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.handler.Process(context.Background(), Callback{CallSid: "CA1", SpeechResult: "q", From: "+911234567890"}, self)
	}()
	<-f.answers.started

	hungUp := make(chan struct{})
	go func() {
		defer wg.Done()
		f.handler.Process(context.Background(), Callback{CallSid: "CA1", CallStatus: "completed"}, self)
		close(hungUp)
	}()

	select {
	case <-hungUp:
		t.Fatal("hangup completed while a turn was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.answers.release)
	wg.Wait()

	assert.Equal(t, 0, f.store.Len())
	require.Len(t, f.answers.summaries, 1)
	assert.Len(t, f.answers.summaries[0], 2)
	assert.Len(t, f.notifier.messages(), 1)
}

func TestProcess_ConcurrentCallsIsolated(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for _, id := range []string{"A", "B", "C", "D"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				f.handler.Process(context.Background(), Callback{CallSid: id, SpeechResult: "q-" + id}, self)
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"A", "B", "C", "D"} {
		sess, ok := f.store.Get(id)
		require.True(t, ok)
		assert.Len(t, sess.History, 10)
		assert.True(t, session.Alternates(sess.History))
		for _, turn := range sess.History {
			assert.Contains(t, turn.Content, "q-"+id)
		}
	}
}

func TestWebhook_EndToEnd(t *testing.T) {
	f := newFixture(t)
	mux := http.NewServeMux()
	mux.Handle("/api/call", f.handler)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	webhook := srv.URL + "/api/call"

	// Initial GET.
	resp, err := http.Get(webhook)
	require.NoError(t, err)
	r := readDoc(t, resp, http.StatusOK)
	require.NotNil(t, r.Gather)
	assert.Equal(t, webhook, r.Gather.Action)
	require.NotNil(t, r.Say)
	assert.Equal(t, "Welcome to the farmer helpline.", r.Say.Text)
	assert.Equal(t, 0, f.store.Len())

	// First question.
	resp, err = http.PostForm(webhook, url.Values{
		"CallSid":      {"abc123"},
		"SpeechResult": {"What is the price of wheat?"},
	})
	require.NoError(t, err)
	r = readDoc(t, resp, http.StatusOK)
	require.NotNil(t, r.Play)
	assert.True(t, strings.HasPrefix(r.Play.URL, "data:audio/wav;base64,"))
	require.NotNil(t, r.Gather)
	assert.Equal(t, webhook, r.Gather.Action)

	sess, ok := f.store.Get("abc123")
	require.True(t, ok)
	require.NotEmpty(t, sess.History)
	assert.Equal(t, session.CallerTurn("What is the price of wheat?"), sess.History[0])

	// Hang-up.
	resp, err = http.PostForm(webhook, url.Values{
		"CallSid":    {"abc123"},
		"CallStatus": {"completed"},
		"From":       {"+911234567890"},
	})
	require.NoError(t, err)
	r = readDoc(t, resp, http.StatusOK)
	assert.NotNil(t, r.Hangup)

	_, ok = f.store.Get("abc123")
	assert.False(t, ok)
	sent := f.notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "+911234567890", sent[0].To)
}

func TestWebhook_GreetingLocale(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://farm.example/api/call?Language=mr-IN", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	r := parseDoc(t, rec.Body.Bytes())
	assert.Equal(t, "mr-IN", r.Say.Language)
	assert.Equal(t, "mr-IN", r.Gather.Language)
	assert.Equal(t, "http://farm.example/api/call", r.Gather.Action)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues("greet", "ok")))
}

func TestWebhook_MissingCallSid(t *testing.T) {
	f := newFixture(t)
	f.handler.Process(context.Background(), Callback{CallSid: "existing", SpeechResult: "q"}, self)

	req := httptest.NewRequest(http.MethodPost, "/api/call", strings.NewReader("SpeechResult=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, twiml.ContentType, rec.Header().Get("Content-Type"))
	r := parseDoc(t, rec.Body.Bytes())
	assert.NotNil(t, r.Hangup)

	assert.Equal(t, 1, f.store.Len())
	sess, _ := f.store.Get("existing")
	assert.Len(t, sess.History, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Callbacks.WithLabelValues("invalid", "error")))
}

func TestWebhook_Options(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/call", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/call", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Allow"))
}

func TestSelfURL(t *testing.T) {
	h := NewHandler(callConfig(), session.NewMemoryStore(), &fakeAnswers{}, &fakeNotifier{})

	req := httptest.NewRequest(http.MethodPost, "http://internal:8080/api/call?x=1", nil)
	assert.Equal(t, "http://internal:8080/api/call", h.SelfURL(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "farm.example, proxy")
	assert.Equal(t, "https://farm.example/api/call", h.SelfURL(req))

	h = NewHandler(callConfig(), session.NewMemoryStore(), &fakeAnswers{}, &fakeNotifier{}, WithPublicURL(self))
	assert.Equal(t, self, h.SelfURL(req))
}

func readDoc(t *testing.T, resp *http.Response, status int) twiml.Response {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, status, resp.StatusCode, string(body))
	assert.Equal(t, twiml.ContentType, resp.Header.Get("Content-Type"))
	return parseDoc(t, body)
}
