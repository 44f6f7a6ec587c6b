// Package mid provides the cross-cutting middleware every route in
// internal/rpc is wrapped in, following the shape referenced by the
// teacher's app/services/node/handlers/handlers.go (mid.Logger, mid.Errors,
// mid.Panics, mid.Cors) even though that package's own foundation/web
// counterpart wasn't part of the retrieved pack.
package mid

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/ledgerforge/corechain/internal/web"
)

// Logger records the method, path, status code and trace id of every
// request once the handler chain has finished.
func Logger(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, _ := web.GetValues(ctx)

			err := handler(ctx, w, r)

			log.Infow("request completed",
				"traceid", v.TraceID,
				"method", r.Method,
				"path", r.URL.Path,
				"statuscode", v.StatusCode,
			)

			return err
		}
		return h
	}
	return m
}

// Panics recovers from a panic inside the handler chain and turns it into
// an error, so a single bad request can never take the process down.
func Panics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("panic: %v [%s]", rec, string(debug.Stack()))
				}
			}()
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Cors sets the response headers needed for cross-origin requests from
// the wallet UI, kept from business/web/mid/cors.go unchanged in shape.
func Cors(origin string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length")
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
