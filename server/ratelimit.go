package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/brettbedarf/filetree"
	"github.com/gorilla/mux"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const CodeTooManyRequests = "TOO_MANY_REQUESTS"

// userLimiter hands out one token bucket per authenticated user
type userLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *xsync.Map[string, *rate.Limiter] // user ID -> bucket
}

func newUserLimiter(perSec float64, burst int) *userLimiter {
	return &userLimiter{
		limit:    rate.Limit(perSec),
		burst:    burst,
		limiters: xsync.NewMap[string, *rate.Limiter](),
	}
}

func (l *userLimiter) get(userID string) *rate.Limiter {
	if lim, ok := l.limiters.Load(userID); ok {
		return lim
	}
	lim, _ := l.limiters.LoadOrStore(userID, rate.NewLimiter(l.limit, l.burst))
	return lim
}

// middleware must run after authenticate so the user is known
func (l *userLimiter) middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := filetree.UserFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			res := l.get(user.ID).Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				zerolog.Ctx(r.Context()).Warn().Str("user", user.ID).Dur("retryAfter", delay).Msg("Rate limited")
				w.Header().Set("Retry-After", strconv.Itoa(int((delay+time.Second-1)/time.Second)))
				writeJSON(w, http.StatusTooManyRequests, errorEnvelope{
					Status: "error",
					Error:  errorBody{Code: CodeTooManyRequests, Message: "Too many requests, slow down"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
