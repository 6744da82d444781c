// Package pipeline composes request handling out of ordered stages that share
// one issue collector. Domain code fills the collector; only the complete stage
// writes to the HTTP response.
package pipeline

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/core/issue"
	"github.com/ulut0002/base-backend/internal/infra/logger"
)

// Keys understood by the bundled complete handlers.
const (
	KeyBody    = "body"
	KeyMessage = "message"
	KeyRequest = "request"
	KeySession = "session"
)

// Context is the per-request state threaded through every stage.
type Context struct {
	Gin    *gin.Context
	Issues *issue.Collector
	Values map[string]any
}

// Set stores a value for later stages.
func (c *Context) Set(key string, value any) {
	c.Values[key] = value
}

// Get returns a value stored by an earlier stage.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// Stage is a single step of a route. Stages record problems on Issues instead of writing responses.
type Stage func(*Context)

// Complete turns the final state into an HTTP response.
type Complete func(*Context)

// Noop is the default pre and post stage.
func Noop(*Context) {}

// Route wires stages around a handler.
type Route struct {
	Pre      []Stage
	Handler  Stage
	Post     []Stage
	Complete Complete
}

// HandlerFunc adapts the route to gin. The handler is skipped when a pre stage
// recorded an error; post and complete stages always run.
func (r Route) HandlerFunc() gin.HandlerFunc {
	complete := r.Complete
	if complete == nil {
		complete = CompleteJSON(http.StatusOK)
	}

	return func(gc *gin.Context) {
		pc := &Context{
			Gin:    gc,
			Issues: issue.NewCollector(),
			Values: make(map[string]any),
		}

		defer func() {
			if rec := recover(); rec != nil {
				logger.WithContext(gc.Request.Context()).Error("pipeline panic",
					zap.String("path", gc.FullPath()),
					zap.String("panic", fmt.Sprint(rec)),
				)
				if !gc.Writer.Written() {
					failed := issue.NewCollector()
					failed.AddError("", issue.CodeAPIError, nil)
					WriteFailure(gc, failed)
				}
				gc.Abort()
			}
		}()

		run(pc, r.Pre)
		if !pc.Issues.HasErrors() && r.Handler != nil {
			r.Handler(pc)
		}
		run(pc, r.Post)
		complete(pc)
	}
}

func run(pc *Context, stages []Stage) {
	for _, stage := range stages {
		if stage != nil {
			stage(pc)
		}
	}
}

// FailureBody is written whenever the collector holds an error.
type FailureBody struct {
	Name         string        `json:"name"`
	InternalCode issue.Code    `json:"internalCode"`
	Message      string        `json:"message"`
	Issues       issue.Grouped `json:"issues"`
}

// WriteFailure responds with the first error's status and the grouped issues.
func WriteFailure(gc *gin.Context, issues *issue.Collector) {
	first, ok := issues.FirstError()
	if !ok {
		first = issue.New(issue.SeverityError, "", issue.CodeAPIError, nil)
	}

	code := first.Code
	if code == "" {
		code = issue.CodeAPIError
	}

	gc.AbortWithStatusJSON(code.HTTPStatus(), FailureBody{
		Name:         string(first.Category()),
		InternalCode: code,
		Message:      first.Message,
		Issues:       issues.All(),
	})
}
