// Package web is a small wrapper over httptreemux that gives every route
// handler a context-aware, error-returning signature, the same shape the
// teacher's foundation/web package gives app/services/node/handlers. That
// package itself is not part of the retrieved pack; this is a from-scratch
// recreation of the shape its call sites (business/web/mid/cors.go,
// app/services/node/handlers/*) assume, built directly on
// github.com/dimfeld/httptreemux/v5 the way the teacher's go.mod implies.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"

	"github.com/ledgerforge/corechain/internal/web/errs"
)

// Handler is the signature every route and middleware in this tree uses.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(Handler) Handler

// ctxKey is an unexported type to avoid context key collisions.
type ctxKey int

const valuesKey ctxKey = 1

// Values carries per-request metadata through the handler chain.
type Values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

// GetValues extracts the Values struct injected by App.Handle.
func GetValues(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(valuesKey).(*Values)
	return v, ok
}

// App is the root router: an httptreemux mux plus an ordered middleware
// chain applied to every route registered through Handle.
type App struct {
	mux      *httptreemux.ContextMux
	shutdown chan os.Signal
	mw       []Middleware
}

// NewApp constructs an App with app-wide middleware, applied to every
// route in the order given (outermost first).
func NewApp(shutdown chan os.Signal, mw ...Middleware) *App {
	return &App{
		mux:      httptreemux.NewContextMux(),
		shutdown: shutdown,
		mw:       mw,
	}
}

// SignalShutdown lets a handler request an application-wide shutdown, the
// same escape hatch foundation/web gives handlers for integrity errors.
func (a *App) SignalShutdown() {
	a.shutdown <- os.Interrupt
}

// ServeHTTP satisfies http.Handler by delegating to the underlying mux.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Handle registers handler at method+group+path, wrapped by route-specific
// middleware first and then the App's own middleware.
func (a *App) Handle(method, group, path string, handler Handler, mw ...Middleware) {
	handler = wrapMiddleware(mw, handler)
	handler = wrapMiddleware(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		v := Values{TraceID: uuid.NewString(), Now: time.Now()}
		ctx := context.WithValue(r.Context(), valuesKey, &v)

		if err := handler(ctx, w, r); err != nil {
			RespondError(ctx, w, err)
		}
	}

	finalPath := path
	if group != "" {
		finalPath = "/" + group + path
	}
	a.mux.Handle(method, finalPath, h)
}

func wrapMiddleware(mw []Middleware, handler Handler) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if m := mw[i]; m != nil {
			handler = m(handler)
		}
	}
	return handler
}

// Param returns the named path parameter for r, matching httptreemux's
// :name path syntax.
func Param(r *http.Request, key string) string {
	return httptreemux.ContextParams(r.Context())[key]
}

// RespondError writes err as a JSON error body: a *errs.Trusted keeps its
// own status and message, anything else becomes a 500 with a generic body
// so internal errors never leak implementation detail to a caller.
func RespondError(ctx context.Context, w http.ResponseWriter, err error) {
	if trusted := errs.GetTrusted(err); trusted != nil {
		Respond(ctx, w, errs.Response{Error: trusted.Error()}, trusted.Status)
		return
	}
	Respond(ctx, w, errs.Response{Error: "internal server error"}, http.StatusInternalServerError)
}

// Decode reads and JSON-decodes r's body into v.
func Decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Respond JSON-encodes data and writes it with statusCode.
func Respond(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	if v, ok := GetValues(ctx); ok {
		v.StatusCode = statusCode
	}

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(jsonData)
	return err
}
