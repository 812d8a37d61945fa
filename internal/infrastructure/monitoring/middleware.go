package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests no route matched, keeping label
// cardinality bounded.
const unmatchedRoute = "unmatched"

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, route, status, time.Since(start), respSize)
	}
}

// Timer measures an identity provider call
type Timer struct {
	start   time.Time
	metrics *Metrics
	op      string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, op string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		op:      op,
	}
}

// Stop records the call with status "success" or "error"
func (t *Timer) Stop(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	t.metrics.RecordIdentityCall(t.op, status, time.Since(t.start))
}
