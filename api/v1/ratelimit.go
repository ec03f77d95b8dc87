package v1

import (
	"net/http"

	"golang.org/x/time/rate"
)

// MARK: newMutationLimiter
// Token bucket shared by every mutating endpoint; nil when perSecond is not positive.
func newMutationLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// MARK: limitMutations
func (a *APIServer) limitMutations(next http.Handler) http.Handler {
	if a.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			a.logger.Warn("Mutation rate limit exceeded", "path", r.URL.Path, "remote", r.RemoteAddr)
			a.respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
