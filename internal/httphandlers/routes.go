package httphandlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"net/http"
)

func Routes(h *ApiHandler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(rr chi.Router) {
		rr.Post("/webhook", h.Webhook)

		rr.Group(func(ar chi.Router) {
			ar.Use(h.RequireActor)
			ar.Post("/instances", h.CreateInstance)
			ar.Get("/instances", h.ListInstances)
			ar.Get("/instances/{instance_id}", h.GetInstance)
			ar.Delete("/instances/{instance_id}", h.DeleteInstance)
			ar.Get("/instances/{instance_id}/activities", h.ListActivities)
			ar.Get("/instances/{instance_id}/credentials", h.Credentials)
			ar.Get("/instances/{instance_id}/events", h.StreamEvents)
			ar.Get("/activities/{activity_id}", h.GetActivity)
			ar.Post("/sales-orders/{sales_order_id}/configure", h.ConfigureSalesOrder)
		})

		rr.Get("/h", func(writer http.ResponseWriter, request *http.Request) {
			ok(writer, "Hoi, we're HTTPs live!", struct{}{})
		})
	})
	return r
}
