package httphandlers

import (
	"context"
	"encoding/json"
	"geohost/internal/eventbus"
	"geohost/internal/manager"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"net/http"
)

type (
	ApiHandler struct {
		mn manager.Manager
		eb eventbus.Bus
	}

	actorKey struct{}
)

func NewApiHandler(mn manager.Manager, eb eventbus.Bus) *ApiHandler {
	return &ApiHandler{mn: mn, eb: eb}
}

// RequireActor reads the authenticated user id set by the gateway in front of the API.
func (handler *ApiHandler) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := uuid.Parse(r.Header.Get(actorHeader))
		if err != nil {
			unauthorized(w, errors.Errorf("missing or invalid %s header", actorHeader))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actorID)))
	})
}

func actorFrom(r *http.Request) uuid.UUID {
	actorID, _ := r.Context().Value(actorKey{}).(uuid.UUID)
	return actorID
}

func (handler *ApiHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	data := make(map[string]interface{})
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	result, err := handler.mn.HandleWebhook(r.Context(), data)
	if err != nil {
		if errors.Is(err, types.ErrValidation) || errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrUnrecognizedStatus) {
			badRequest(w, err)
			return
		}
		serverError(w, err)
		return
	}

	ok(w, "webhook processed", result)
}

func (handler *ApiHandler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var params types.CreateInstanceParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	activity, err := handler.mn.CreateInstance(r.Context(), actorFrom(r), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "instance requested", activity)
}

func (handler *ApiHandler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(chi.URLParam(r, "instance_id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	activity, err := handler.mn.DeleteInstance(r.Context(), actorFrom(r), instanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "instance deletion requested", activity)
}

func (handler *ApiHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := handler.mn.ListInstances(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "success", instances)
}

func (handler *ApiHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(chi.URLParam(r, "instance_id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	instance, err := handler.mn.GetInstance(r.Context(), actorFrom(r), instanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "success", instance)
}

func (handler *ApiHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(chi.URLParam(r, "instance_id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	activities, err := handler.mn.ListActivities(r.Context(), actorFrom(r), instanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "success", activities)
}

func (handler *ApiHandler) Credentials(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(chi.URLParam(r, "instance_id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	creds, err := handler.mn.Credentials(r.Context(), actorFrom(r), instanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "success", creds)
}

func (handler *ApiHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	activityID, err := uuid.Parse(chi.URLParam(r, "activity_id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	activity, err := handler.mn.GetActivity(r.Context(), actorFrom(r), activityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "success", activity)
}

func (handler *ApiHandler) ConfigureSalesOrder(w http.ResponseWriter, r *http.Request) {
	salesOrderID, err := uuid.Parse(chi.URLParam(r, "sales_order_id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	var params types.ConfigureSalesOrderParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		badRequest(w, errors.Wrap(err, "invalid request body"))
		return
	}

	activity, err := handler.mn.ConfigureSalesOrder(r.Context(), actorFrom(r), salesOrderID, params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ok(w, "sales order configured", activity)
}

// StreamEvents pushes instance and activity status changes of one instance until the
// client goes away.
func (handler *ApiHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	instanceID, err := uuid.Parse(chi.URLParam(r, "instance_id"))
	if err != nil {
		badRequest(w, err)
		return
	}

	instance, err := handler.mn.GetInstance(r.Context(), actorFrom(r), instanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	identifier := instance.ID.String()
	ch := handler.eb.Register(identifier)
	defer handler.eb.Unregister(identifier, ch)
	logger.Info("registered client for instance events", zap.String("instance", instance.Name))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	_ = writeSSELine(w, eventbus.Event{Type: eventbus.InstanceStatus, Message: instance.Status.String()})
	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			_ = writeSSELine(w, ev)
		case <-r.Context().Done():
			logger.Debug("client disconnected", zap.String("instance", instance.Name))
			return
		}
	}
}
