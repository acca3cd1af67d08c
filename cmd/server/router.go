package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/studycycle-api/internal/api"
	apiMiddleware "github.com/phrazzld/studycycle-api/internal/api/middleware"
)

// routeHandlers groups the handlers mounted by newRouter.
type routeHandlers struct {
	ml      *api.MLHandler
	reviews *api.ReviewHandler
	content *api.ContentHandler
}

// setupRouter builds the router from the application's services.
func (app *application) setupRouter() http.Handler {
	return newRouter(app.handlers(), app.logger)
}

// newRouter registers middleware and every API route.
func newRouter(h routeHandlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/suggestions", h.content.Suggest)
		r.Post("/content", h.content.CreateContent)
		r.Post("/content/{id}/generate", h.content.Generate)
		r.Put("/profiles/{userID}", h.content.SaveProfile)

		r.Route("/ml", func(r chi.Router) {
			r.Post("/events", h.ml.LogEvent)
			r.Get("/events", h.ml.ListEvents)
			r.Get("/lambda/{userID}", h.ml.GetLambda)
			r.Post("/lambda/{userID}", h.ml.SetLambda)
			r.Post("/adjust-lambda/{userID}", h.ml.AdjustLambda)
			r.Post("/predict", h.ml.Predict)
			r.Post("/train", h.ml.Train)
			r.Post("/estimate-lambdas", h.ml.EstimateLambdas)
			r.Get("/coefficients", h.ml.Coefficients)
			r.Get("/schedule/{userID}", h.ml.Schedule)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/outcomes", h.reviews.RecordOutcome)
			r.Post("/variants/{variantID}/used", h.reviews.MarkUsed)
			r.Get("/{itemID}/variants", h.reviews.ListVariants)
			r.Post("/{itemID}/variants", h.reviews.CreateVariant)
			r.Get("/{itemID}/variants/next", h.reviews.NextVariant)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
