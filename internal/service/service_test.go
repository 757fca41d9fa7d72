package service

import (
	"context"
	"fmt"
	"geohost/internal/database"
	"geohost/internal/eventbus"
	"geohost/internal/integrations/mail"
	"geohost/internal/storage"
	"geohost/internal/testhelper"
	"geohost/internal/types"
	"geohost/logger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

type dispatchCall struct {
	URL  string
	Data map[string]interface{}
}

type fakeDispatcher struct {
	mu       sync.Mutex
	err      error
	location string
	calls    []dispatchCall
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, jobURL string, data map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{URL: jobURL, Data: data})
	if f.err != nil {
		return "", f.err
	}
	if f.location != "" {
		return f.location, nil
	}
	return fmt.Sprintf("https://jenkins.test/queue/item/%d/", len(f.calls)), nil
}

func (f *fakeDispatcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeDispatcher) Calls() []dispatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dispatchCall{}, f.calls...)
}

type fakeMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeMailer) Messages() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Message{}, f.messages...)
}

type fakeSecrets struct {
	mu    sync.Mutex
	creds map[string]string
	err   error
}

func (f *fakeSecrets) Credentials(ctx context.Context, secretURL, appName string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.creds, nil
}

type fakeBilling struct {
	mu        sync.Mutex
	err       error
	cancelled []string
}

func (f *fakeBilling) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, subscriptionID)
	return f.err
}

type fakeERP struct {
	mu       sync.Mutex
	comments []string
	statuses []types.SalesOrderStatus
}

func (f *fakeERP) AddComment(ctx context.Context, author types.User, erpCode, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, comment)
	return nil
}

func (f *fakeERP) UpdateSalesOrderStatus(ctx context.Context, erpCode string, status types.SalesOrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

// probeTransport answers health probes by host without any network.
type probeTransport struct {
	mu     sync.Mutex
	status map[string]int
	hits   map[string]int
}

func (p *probeTransport) set(host string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[host] = status
}

func (p *probeTransport) Hits(host string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[host]
}

func (p *probeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits[req.URL.Host]++
	status, ok := p.status[req.URL.Host]
	if !ok {
		return nil, errors.Errorf("dial tcp: lookup %s: no such host", req.URL.Host)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

type testEnv struct {
	ctx        context.Context
	db         *gorm.DB
	catalog    *testhelper.Catalog
	dispatcher *fakeDispatcher
	mailer     *fakeMailer
	secrets    *fakeSecrets
	billing    *fakeBilling
	erp        *fakeERP
	probes     *probeTransport
	archive    *storage.Memory
	bus        eventbus.Bus

	eventRepository      database.WebhookEventRepository
	salesOrderRepository database.SalesOrderRepository

	credentials  CredentialService
	instances    InstanceService
	activities   ActivityService
	provisioning ProvisioningService
	webhooks     WebhookService
	health       HealthCheckService
	salesOrders  SalesOrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testhelper.NewDB(t)
	env := &testEnv{
		ctx:        context.Background(),
		db:         db,
		catalog:    testhelper.Seed(t, db, "http://jenkins.test"),
		dispatcher: &fakeDispatcher{},
		mailer:     &fakeMailer{},
		secrets:    &fakeSecrets{creds: map[string]string{"ADMIN_PASSWORD": "s3cret"}},
		billing:    &fakeBilling{},
		erp:        &fakeERP{},
		probes:     &probeTransport{status: map[string]int{}, hits: map[string]int{}},
		archive:    storage.NewMemory(),
		bus:        eventbus.New(),
	}

	activityRepo := database.NewActivityRepository(db)
	instanceRepo := database.NewInstanceRepository(db)
	catalogRepo := database.NewCatalogRepository(db)
	userRepo := database.NewUserRepository(db)
	env.eventRepository = database.NewWebhookEventRepository(db)
	env.salesOrderRepository = database.NewSalesOrderRepository(db)
	validate := NewValidator()

	env.credentials = NewCredentialService(env.secrets, env.mailer, CredentialConfig{
		FrontendURL:  "https://geohost.test/#/",
		SupportEmail: "support@geohost.test",
	})
	env.instances = NewInstanceService(instanceRepo, activityRepo, env.salesOrderRepository, env.credentials, env.billing, env.bus)
	env.activities = NewActivityService(activityRepo, catalogRepo, env.instances, env.dispatcher, env.erp, env.bus)
	env.provisioning = NewProvisioningService(env.activities, env.instances, activityRepo, instanceRepo, catalogRepo,
		userRepo, env.salesOrderRepository, validate)
	env.webhooks = NewWebhookService(WebhookConfig{Source: "argocd", TenantPrefixes: []string{"devops-"}, Retention: time.Hour},
		env.eventRepository, env.instances, env.activities, env.archive, validate)
	env.health = NewHealthCheckService(HealthCheckConfig{Source: "argocd", Timeout: time.Second, Concurrency: 4},
		&http.Client{Transport: env.probes}, env.instances, env.eventRepository)
	env.salesOrders = NewSalesOrderService(env.salesOrderRepository, userRepo, env.provisioning, env.erp, validate)
	return env
}

// create provisions name for the catalog owner and returns the activity.
func (e *testEnv) create(t *testing.T, name string) *types.Activity {
	t.Helper()
	activity, err := e.provisioning.CreateInstance(e.ctx, e.catalog.Owner.ID, types.CreateInstanceParams{
		AppName:   name,
		PackageID: e.catalog.Package.ID,
	})
	require.NoError(t, err)
	return activity
}

func (e *testEnv) instance(t *testing.T, name string) *types.Instance {
	t.Helper()
	instance, err := e.instances.FindByName(e.ctx, name)
	require.NoError(t, err)
	return instance
}

// reload reads the persisted state of an activity.
func (e *testEnv) reload(t *testing.T, activity *types.Activity) *types.Activity {
	t.Helper()
	return testhelper.ActivityStatus(t, e.db, activity.ID)
}

func (e *testEnv) webhook(status string, extra ...string) (*types.WebhookResult, error) {
	data := map[string]interface{}{"app_name": "acme", "status": status, "source": "argocd"}
	for i := 0; i+1 < len(extra); i += 2 {
		data[extra[i]] = extra[i+1]
	}
	return e.webhooks.Handle(e.ctx, data)
}

func (e *testEnv) host(name string) string {
	return name + "." + e.catalog.Cluster.Domain
}
