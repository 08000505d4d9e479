package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/cookie-auth-gateway/internal/observability"
	"github.com/upb/cookie-auth-gateway/services/exchange"
	"github.com/upb/cookie-auth-gateway/utils"
)

// Response bodies. The proxy only reads the status code.
const (
	BodyAuthorized    = "Authorized!"
	BodyNotAuthorized = "Not authorized"
	BodyNoAuthData    = "No auth data"
)

// Evaluator decides a request from its raw Cookie header.
type Evaluator interface {
	EvaluateHeader(ctx context.Context, rawCookieHeader string) exchange.Result
}

// CookieOptions are the attributes put on every cookie the handler writes.
type CookieOptions struct {
	Secure bool
}

// CheckAuthHandler answers the reverse proxy's auth subrequest.
type CheckAuthHandler struct {
	evaluator Evaluator
	cookies   CookieOptions
	logger    observability.Logger
}

// NewCheckAuthHandler creates a new CheckAuthHandler
func NewCheckAuthHandler(evaluator Evaluator, cookies CookieOptions, logger observability.Logger) *CheckAuthHandler {
	if logger == nil {
		logger = observability.NewLogger(nil)
	}
	return &CheckAuthHandler{
		evaluator: evaluator,
		cookies:   cookies,
		logger:    logger,
	}
}

// HandleCheckAuth handles GET /auth/check_auth
func (h *CheckAuthHandler) HandleCheckAuth(w http.ResponseWriter, r *http.Request) {
	// HTTP/2 may split cookies across several header lines
	raw := strings.Join(r.Header.Values("Cookie"), "; ")

	result := h.evaluator.EvaluateHeader(r.Context(), raw)

	if result.Mutation != nil {
		http.SetCookie(w, h.cookieFor(*result.Mutation))
	}

	status, body := statusFor(result.Verdict)
	if err := utils.WriteText(w, status, body); err != nil {
		h.logger.Warn(r.Context(), "failed to write auth response", zap.Int("status", status), zap.Error(err))
	}
}

// statusFor maps a verdict to one of the three statuses the proxy
// understands.
func statusFor(verdict exchange.Verdict) (int, string) {
	switch verdict {
	case exchange.VerdictAuthorized:
		return http.StatusOK, BodyAuthorized
	case exchange.VerdictDenied:
		return http.StatusForbidden, BodyNotAuthorized
	default:
		return http.StatusUnauthorized, BodyNoAuthData
	}
}

func (h *CheckAuthHandler) cookieFor(m exchange.CookieMutation) *http.Cookie {
	c := &http.Cookie{
		Name:     m.Name,
		Path:     "/",
		Secure:   h.cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	switch m.Op {
	case exchange.MutationDelete:
		c.MaxAge = -1 // rendered as Max-Age=0
		c.Expires = time.Unix(0, 0)
	default:
		c.Value = m.Value
	}
	return c
}
