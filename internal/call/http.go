package call

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/farmline/internal/twiml"
)

// ServeHTTP routes webhook requests by method.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	switch r.Method {
	case http.MethodOptions:
		h.handleOptions(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodPost:
		h.handlePost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeDoc(w, http.StatusMethodNotAllowed, twiml.Error("method not allowed"))
	}
}

// handleGet answers the initial call setup.
//
// @Summary     Start a call
// @Description Returns a greeting and a speech Gather pointing back at this URL.
// @Tags        call
// @Produce     xml
// @Param       Language  query  string  false  "BCP-47 recognition locale"
// @Success     200  {string}  string  "TwiML greeting document"
// @Router      /api/call [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	writeDoc(w, http.StatusOK, h.Greet(h.SelfURL(r), strings.TrimSpace(r.URL.Query().Get("Language"))))
}

// handlePost processes a provider callback.
//
// @Summary     Process a call event
// @Description A speech turn is answered with synthesized audio and another Gather.
// @Description A terminal CallStatus (completed, failed, busy, no-answer) ends the session,
// @Description texts the caller a summary, and returns Hangup.
// @Tags        call
// @Accept      x-www-form-urlencoded
// @Produce     xml
// @Param       CallSid       formData  string  true   "Provider call identifier"
// @Param       SpeechResult  formData  string  false  "Recognized caller speech"
// @Param       Digits        formData  string  false  "Keypad input"
// @Param       Language      formData  string  false  "BCP-47 recognition locale"
// @Param       CallStatus    formData  string  false  "Call status"
// @Param       From          formData  string  false  "Caller phone number"
// @Param       Direction     formData  string  false  "Call direction"
// @Success     200  {string}  string  "TwiML document"
// @Failure     400  {string}  string  "TwiML error document; CallSid missing or body malformed"
// @Router      /api/call [post]
func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	cb, err := ParseCallback(r)
	if err != nil {
		h.metrics.Callback("invalid", err)
		slog.Warn("invalid callback", "error", err, "remote", r.RemoteAddr)
		msg := "invalid callback"
		if errors.Is(err, ErrMissingCallSid) {
			msg = "missing CallSid"
		}
		writeDoc(w, http.StatusBadRequest, twiml.Error(msg))
		return
	}
	writeDoc(w, http.StatusOK, h.Process(r.Context(), cb, h.SelfURL(r)))
}

// handleOptions answers CORS preflight.
//
// @Summary     CORS preflight
// @Tags        call
// @Success     204
// @Router      /api/call [options]
func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
}

func writeDoc(w http.ResponseWriter, status int, doc []byte) {
	w.Header().Set("Content-Type", twiml.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(doc)
}
