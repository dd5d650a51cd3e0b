package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter retention window. Entries idle longer than this are dropped
// so one-off clients do not accumulate forever.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a per-IP token bucket in front of the guild API.
// It sits before Auth, so it throttles login attempts and anonymous
// probing as well as authenticated guild traffic. r is requests per
// second, b the burst size.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	limiters := &sync.Map{}

	go func() {
		ticker := time.NewTicker(limiterIdleTTL / 2)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-limiterIdleTTL)
			limiters.Range(func(k, v interface{}) bool {
				if v.(*clientLimiter).lastSeen.Before(cutoff) {
					limiters.Delete(k)
				}
				return true
			})
		}
	}()

	getLimiter := func(ip string) *rate.Limiter {
		v, _ := limiters.LoadOrStore(ip, &clientLimiter{limiter: rate.NewLimiter(r, b)})
		cl := v.(*clientLimiter)
		cl.lastSeen = time.Now()
		return cl.limiter
	}

	return func(c *gin.Context) {
		if !getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
