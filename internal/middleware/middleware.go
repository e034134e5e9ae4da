package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderCorrelationID carries the request correlation ID in both directions.
const HeaderCorrelationID = "X-Correlation-ID"

type correlationKey struct{}

// RequestRecorder receives one record per completed request.
type RequestRecorder interface {
	APIRequest(method, endpoint string, statusCode int, duration time.Duration)
}

// RequestLogger creates a zerolog-based request logger middleware. recorder
// may be nil.
func RequestLogger(logger zerolog.Logger, recorder RequestRecorder) func(next http.Handler) http.Handler {
	return middleware.RequestLogger(&RequestLoggerFormatter{Logger: logger, Recorder: recorder})
}

// RequestLoggerFormatter implements chi's LogFormatter interface
type RequestLoggerFormatter struct {
	Logger   zerolog.Logger
	Recorder RequestRecorder
}

func (l *RequestLoggerFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	entry := &RequestLoggerEntry{
		Logger:        l.Logger,
		Recorder:      l.Recorder,
		CorrelationID: CorrelationIDFrom(r.Context()),
		Method:        r.Method,
		URL:           r.URL.Path,
		RemoteAddr:    r.RemoteAddr,
	}

	entry.Logger.Debug().
		Str("correlation_id", entry.CorrelationID).
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("remote_addr", r.RemoteAddr).
		Msg("Request started")

	return entry
}

// RequestLoggerEntry implements chi's LogEntry interface
type RequestLoggerEntry struct {
	Logger        zerolog.Logger
	Recorder      RequestRecorder
	CorrelationID string
	Method        string
	URL           string
	RemoteAddr    string
}

func (l *RequestLoggerEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	level := zerolog.DebugLevel
	if status >= 400 && status < 500 {
		level = zerolog.WarnLevel
	} else if status >= 500 {
		level = zerolog.ErrorLevel
	}

	l.Logger.WithLevel(level).
		Str("correlation_id", l.CorrelationID).
		Str("method", l.Method).
		Str("url", l.URL).
		Int("status", status).
		Int("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("Request completed")

	if l.Recorder != nil {
		l.Recorder.APIRequest(l.Method, l.URL, status, elapsed)
	}
}

func (l *RequestLoggerEntry) Panic(v interface{}, stack []byte) {
	l.Logger.Error().
		Str("correlation_id", l.CorrelationID).
		Str("method", l.Method).
		Str("url", l.URL).
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("Request panic")
}

// CorrelationID makes sure every request carries a correlation ID, echoes it
// in the response and stores it in the request context. It must run before
// RequestLogger.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
			r.Header.Set(HeaderCorrelationID, correlationID)
		}
		w.Header().Set(HeaderCorrelationID, correlationID)

		ctx := context.WithValue(r.Context(), correlationKey{}, correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationIDFrom returns the ID stored by CorrelationID, or "".
func CorrelationIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
