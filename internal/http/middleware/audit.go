// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the request audit trail: every dispatched action is
// recorded (action name, parameter key names, caller IP, status, duration)
// after the response is written. Bodies are never persisted, only parameter
// names, so the trail stays useful without accumulating payload data.
package middleware

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/arley101/dynamics-gateway/internal/domain"
	"github.com/arley101/dynamics-gateway/internal/repo"
)

// Context keys the dispatcher uses to annotate the request for auditing.
const (
	ctxKeyAuditAction = "audit.action"
	ctxKeyAuditParams = "audit.params"
)

// SetAuditAction records the resolved action name and its parameter key names
// for the audit middleware. Called by the dispatch handler once the request
// body is bound.
func SetAuditAction(c *gin.Context, action string, params map[string]any) {
	c.Set(ctxKeyAuditAction, action)
	if len(params) == 0 {
		return
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c.Set(ctxKeyAuditParams, strings.Join(keys, ","))
}

// Audit returns a middleware that persists one AuditRecord per dispatched
// action. Requests that never reach the dispatcher (health checks, unmatched
// routes, rate-limit rejections before binding) carry no action annotation
// and are skipped.
//
// Writes happen after the response on the request goroutine with a short
// timeout decoupled from the client's context; failures are logged by the
// request logger and never affect the already-written response.
func Audit(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		actionVal, ok := c.Get(ctxKeyAuditAction)
		if !ok {
			return
		}
		action, _ := actionVal.(string)
		if action == "" {
			return
		}
		paramKeys := ""
		if v, ok := c.Get(ctxKeyAuditParams); ok {
			paramKeys, _ = v.(string)
		}

		status := c.Writer.Status()
		outcome := "success"
		if status >= 400 {
			outcome = "error"
		}

		rec := &domain.AuditRecord{
			CorrelationID: CorrelationIDFrom(c),
			Action:        action,
			ClientIP:      c.ClientIP(),
			ParamKeys:     paramKeys,
			Status:        status,
			Outcome:       outcome,
			DurationMS:    time.Since(start).Milliseconds(),
		}

		// The request context may already be done; use a detached timeout.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := repo.InsertAudit(ctx, db, rec); err != nil {
			LoggerFrom(c).Error().Err(err).Str("action", action).Msg("audit insert failed")
		}
	}
}
