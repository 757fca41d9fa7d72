package httphandlers

import (
	"bufio"
	"context"
	"encoding/json"
	"geohost/internal/eventbus"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type fakeManager struct {
	actor    uuid.UUID
	instance *types.Instance
	err      error
	webhook  map[string]interface{}
	created  types.CreateInstanceParams
}

func (f *fakeManager) CreateInstance(ctx context.Context, actorID uuid.UUID, params types.CreateInstanceParams) (*types.Activity, error) {
	f.actor = actorID
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return &types.Activity{ID: uuid.New(), Status: types.ActivityStatusBuildArgo, TriggeredByID: actorID}, nil
}

func (f *fakeManager) DeleteInstance(ctx context.Context, actorID, instanceID uuid.UUID) (*types.Activity, error) {
	f.actor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return &types.Activity{ID: uuid.New(), InstanceID: &instanceID, Status: types.ActivityStatusBuildArgo}, nil
}

func (f *fakeManager) GetInstance(ctx context.Context, actorID, instanceID uuid.UUID) (*types.Instance, error) {
	f.actor = actorID
	if f.err != nil {
		return nil, f.err
	}
	return f.instance, nil
}

func (f *fakeManager) ListInstances(ctx context.Context, actorID uuid.UUID) ([]*types.Instance, error) {
	f.actor = actorID
	return []*types.Instance{f.instance}, f.err
}

func (f *fakeManager) ListActivities(ctx context.Context, actorID, instanceID uuid.UUID) ([]*types.Activity, error) {
	return []*types.Activity{}, f.err
}

func (f *fakeManager) GetActivity(ctx context.Context, actorID, activityID uuid.UUID) (*types.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Activity{ID: activityID}, nil
}

func (f *fakeManager) Credentials(ctx context.Context, actorID, instanceID uuid.UUID) (types.InstanceCredentials, error) {
	if f.err != nil {
		return nil, f.err
	}
	return types.InstanceCredentials{"USERNAME": "admin"}, nil
}

func (f *fakeManager) HandleWebhook(ctx context.Context, data map[string]interface{}) (*types.WebhookResult, error) {
	f.webhook = data
	if f.err != nil {
		return nil, f.err
	}
	return &types.WebhookResult{EventID: uuid.New(), Action: types.WebhookActionSuccess}, nil
}

func (f *fakeManager) ConfigureSalesOrder(ctx context.Context, actorID, salesOrderID uuid.UUID, params types.ConfigureSalesOrderParams) (*types.Activity, error) {
	return nil, f.err
}

func newServer(t *testing.T, mn *fakeManager, bus eventbus.Bus) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Routes(NewApiHandler(mn, bus)))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string, actor *uuid.UUID) (*http.Response, response) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if actor != nil {
		req.Header.Set(actorHeader, actor.String())
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "processed", body: `{"app_name":"acme","status":"synced","source":"argocd"}`, status: http.StatusOK},
		{name: "malformed json", body: `{"app_name":`, status: http.StatusBadRequest},
		{name: "missing keys", body: `{}`, err: types.NewValidationError("invalid value provided for: status"), status: http.StatusBadRequest},
		{name: "unknown app", body: `{}`, err: errors.Wrap(types.ErrNotFound, "instance acme"), status: http.StatusBadRequest},
		{name: "unknown status", body: `{}`, err: errors.Wrap(types.ErrUnrecognizedStatus, "status \"x\""), status: http.StatusBadRequest},
		{name: "database down", body: `{}`, err: errors.New("database is locked"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mn := &fakeManager{err: tt.err}
			srv := newServer(t, mn, eventbus.New())

			resp, body := doRequest(t, http.MethodPost, srv.URL+"/v1/webhook", tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.status != http.StatusOK, body.Error)
		})
	}
}

func TestWebhook_PassesRawPayload(t *testing.T) {
	mn := &fakeManager{}
	srv := newServer(t, mn, eventbus.New())

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/webhook", `{"app_name":"devops-acme","Status":"Synced","Source":"ArgoCD","extra":1}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "devops-acme", mn.webhook["app_name"])
	assert.Equal(t, "Synced", mn.webhook["Status"])
	assert.EqualValues(t, 1, mn.webhook["extra"])
}

func TestCreateInstance(t *testing.T) {
	actor := uuid.New()
	packageID := uuid.New()

	t.Run("requires actor", func(t *testing.T) {
		srv := newServer(t, &fakeManager{}, eventbus.New())
		resp, _ := doRequest(t, http.MethodPost, srv.URL+"/v1/instances", `{}`, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("accepted", func(t *testing.T) {
		mn := &fakeManager{}
		srv := newServer(t, mn, eventbus.New())
		resp, body := doRequest(t, http.MethodPost, srv.URL+"/v1/instances",
			`{"app_name":"acme","package_id":"`+packageID.String()+`","region":"eu","product":"GeoNode"}`, &actor)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, body.Error)
		assert.Equal(t, actor, mn.actor)
		assert.Equal(t, types.CreateInstanceParams{AppName: "acme", PackageID: packageID, RegionCode: "eu", Product: "GeoNode"}, mn.created)
	})

	t.Run("validation error", func(t *testing.T) {
		mn := &fakeManager{err: types.NewValidationError("App name is already taken.")}
		srv := newServer(t, mn, eventbus.New())
		resp, body := doRequest(t, http.MethodPost, srv.URL+"/v1/instances", `{"app_name":"acme"}`, &actor)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "App name is already taken.", body.Message)
	})
}

func TestDeleteInstance(t *testing.T) {
	actor := uuid.New()
	instanceID := uuid.New()

	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{name: "accepted", path: instanceID.String(), status: http.StatusOK},
		{name: "bad id", path: "not-a-uuid", status: http.StatusBadRequest},
		{name: "not owner", path: instanceID.String(), err: errors.Wrap(types.ErrForbidden, "nope"), status: http.StatusForbidden},
		{name: "not ready", path: instanceID.String(), err: types.NewValidationError("Instance is not ready."), status: http.StatusBadRequest},
		{name: "missing", path: instanceID.String(), err: errors.Wrap(types.ErrNotFound, "instance"), status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &fakeManager{err: tt.err}, eventbus.New())
			resp, _ := doRequest(t, http.MethodDelete, srv.URL+"/v1/instances/"+tt.path, "", &actor)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHealthRoute(t *testing.T) {
	srv := newServer(t, &fakeManager{}, eventbus.New())
	resp, body := doRequest(t, http.MethodGet, srv.URL+"/v1/h", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, body.Error)
}

func TestStreamEvents(t *testing.T) {
	actor := uuid.New()
	instance := &types.Instance{ID: uuid.New(), Name: "acme", Status: types.InstanceStatusDeploying}
	bus := eventbus.New()
	srv := newServer(t, &fakeManager{instance: instance}, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/instances/"+instance.ID.String()+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(actorHeader, actor.String())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() eventbus.Event {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		_, _ = reader.ReadString('\n')
		var ev eventbus.Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		return ev
	}

	first := next()
	assert.Equal(t, eventbus.InstanceStatus, first.Type)
	assert.Equal(t, "DEPLOYING", first.Message)

	// the handler registers before writing the first line
	bus.Broadcast(instance.ID.String(), eventbus.InstanceStatus, "STARTING_UP")
	second := next()
	assert.Equal(t, "STARTING_UP", second.Message)
}
