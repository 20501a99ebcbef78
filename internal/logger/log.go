package logger

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	bodySizeLimit = 16 * 1024 // per body
	truncated     = "TRUNCATED..."
	// request log type
	requestType = "request"
)

// requestRecord is the request log written for every HTTP call
type requestRecord struct {
	RequestID       string // AwsRequestID when running in Lambda
	UserID          string
	Started         time.Time
	Duration        time.Duration
	HTTPStatusCode  int
	ErrorStackTrace string
	HTTPMethod      string
	RequestPath     string
	RequestQuery    string
	RequestBody     string
	ResponseBody    string
}

func (r *requestRecord) fields() []zap.Field {
	return []zap.Field{
		zap.String("type", requestType),
		zap.String("request_id", r.RequestID),
		zap.String("user_id", r.UserID),
		zap.Time("timestamp", r.Started),
		zap.Duration("duration", r.Duration),
		zap.Int("status", r.HTTPStatusCode),
		zap.String("method", r.HTTPMethod),
		zap.String("path", r.RequestPath),
		zap.String("query", r.RequestQuery),
		zap.String("request_body", r.RequestBody),
		zap.String("response_body", r.ResponseBody),
		zap.String("stack", r.ErrorStackTrace),
	}
}

// GinLogMiddleware writes one request log entry per request, even when a
// later handler panics.
func GinLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		respWriter := &respLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = respWriter

		record := newRequestRecord(c)

		defer func() {
			GetLogger().Info("http request", record.fields()...)
		}()

		defer func() {
			if r := recover(); r != nil {
				record.HTTPStatusCode = http.StatusInternalServerError
				record.ErrorStackTrace = string(debug.Stack())
				record.Duration = time.Since(record.Started)
				// rethrow for gin's recovery middleware
				panic(r)
			}
		}()

		if lc, ok := lambdacontext.FromContext(c.Request.Context()); ok {
			record.RequestID = lc.AwsRequestID
		}

		c.Next()

		record.HTTPStatusCode = c.Writer.Status()
		record.Duration = time.Since(record.Started)
		record.UserID = c.GetString(UserIDKey)
		if c.GetBool(RedactBodyKey) {
			record.RequestBody = redacted
		}
		record.ResponseBody = truncate(respWriter.body.String())
	}
}

const (
	// UserIDKey is the gin context key handlers use to attach the calling user
	UserIDKey = "user_id"
	// RedactBodyKey marks a request whose body must not be logged
	RedactBodyKey = "redact_body"

	redacted = "REDACTED"
)

func truncate(s string) string {
	if len(s) <= bodySizeLimit {
		return s
	}
	return truncated
}

type respLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w respLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w respLogWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func newRequestRecord(c *gin.Context) *requestRecord {
	var requestBody string
	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			GetLogger().Warn("failed to read request body", zap.Error(err))
		}
		// reattach request body for later use
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		requestBody = string(body)
	}

	return &requestRecord{
		Started:      time.Now(),
		HTTPMethod:   c.Request.Method,
		RequestPath:  c.Request.URL.Path,
		RequestQuery: c.Request.URL.Query().Encode(),
		RequestBody:  truncate(requestBody),
	}
}
