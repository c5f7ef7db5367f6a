package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/adpulse/go-expiry-service/internal/domain"
	"github.com/adpulse/go-expiry-service/internal/repository"
	"github.com/adpulse/go-expiry-service/internal/service"
	apperr "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
	"github.com/adpulse/go-expiry-service/internal/store"
)

type fakeGraph struct {
	configured bool
	users      []domain.DirectoryUser
	groups     map[string]domain.Group
	members    map[string][]domain.DirectoryUser
	listErr    error
	tokenErr   error
	scopeErr   error
}

func (f *fakeGraph) Configured() bool { return f.configured }
func (f *fakeGraph) ExpiryDays() int  { return 90 }

func (f *fakeGraph) Token(ctx context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "token", nil
}

func (f *fakeGraph) ListUsers(ctx context.Context) ([]domain.DirectoryUser, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.users, nil
}

func (f *fakeGraph) FindGroupByName(ctx context.Context, name string) (domain.Group, error) {
	g, ok := f.groups[name]
	if !ok {
		return domain.Group{}, apperr.NewGroupNotFoundError(name)
	}
	return g, nil
}

func (f *fakeGraph) ListTransitiveMembers(ctx context.Context, groupID string) ([]domain.DirectoryUser, error) {
	return f.members[groupID], nil
}

func (f *fakeGraph) CheckUserScope(ctx context.Context) error  { return f.scopeErr }
func (f *fakeGraph) CheckGroupScope(ctx context.Context) error { return f.scopeErr }

type fakeVerifier struct{ err error }

func (f *fakeVerifier) Verify() error { return f.err }

type fakeJob struct {
	result *domain.JobResult
	err    error
}

func (f *fakeJob) Run(ctx context.Context, req domain.RunJobRequest) (*domain.JobResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fixture struct {
	router   *gin.Engine
	envs     *repository.EnvironmentRepository
	profiles *repository.ProfileRepository
	queue    *repository.QueueRepository
	graph    *fakeGraph
	verifier *fakeVerifier
	job      *fakeJob
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewLogger()
	st, err := store.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	f := &fixture{
		envs:     repository.NewEnvironmentRepository(st, log),
		profiles: repository.NewProfileRepository(st, log),
		queue:    repository.NewQueueRepository(st, log),
		graph:    &fakeGraph{},
		verifier: &fakeVerifier{},
		job:      &fakeJob{result: &domain.JobResult{Success: true}},
	}
	historyRepo := repository.NewHistoryRepository(st, log)

	graphFactory := func(domain.GraphConfig) GraphClient { return f.graph }
	verifierFactory := func(domain.SMTPConfig) SMTPVerifier { return f.verifier }

	configHandler := NewConfigHandler(f.envs, graphFactory, verifierFactory, log)
	directoryHandler := NewDirectoryHandler(f.envs, graphFactory, service.NewExpiryService(log), log)
	profileHandler := NewProfileHandler(f.profiles, log)
	jobHandler := NewJobHandler(f.job, historyRepo, log)
	queueHandler := NewQueueHandler(f.queue, log)

	router := gin.New()
	router.GET("/api/config", configHandler.GetConfig)
	router.GET("/api/environments", configHandler.GetEnvironments)
	router.POST("/api/environments", configHandler.MutateEnvironments)
	router.POST("/api/validate-permissions", configHandler.ValidatePermissions)
	router.POST("/api/test-smtp", configHandler.TestSMTP)
	router.GET("/api/users", directoryHandler.GetUsers)
	router.POST("/api/verify-group", directoryHandler.VerifyGroup)
	router.POST("/api/verify-group-detailed", directoryHandler.VerifyGroupDetailed)
	router.GET("/api/profiles", profileHandler.GetProfiles)
	router.POST("/api/profiles", profileHandler.SaveProfile)
	router.DELETE("/api/profiles/:id", profileHandler.DeleteProfile)
	router.POST("/api/run-job", jobHandler.RunJob)
	router.GET("/api/history", jobHandler.GetHistory)
	router.GET("/api/queue", queueHandler.GetQueue)
	router.POST("/api/queue/toggle", queueHandler.TogglePause)
	router.POST("/api/queue/cancel", queueHandler.CancelItem)
	router.POST("/api/queue/clear", queueHandler.ClearQueue)
	f.router = router
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestGetUsersEmptyWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	f.graph.configured = false

	w := f.do(t, http.MethodGet, "/api/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if users, ok := body["users"].([]any); !ok || len(users) != 0 {
		t.Fatalf("users = %v, want empty list", body["users"])
	}
}

func TestGetUsersAuthFailure(t *testing.T) {
	f := newFixture(t)
	f.graph.configured = true
	f.graph.listErr = apperr.NewAuthFailureError("invalid client secret", nil)

	w := f.do(t, http.MethodGet, "/api/users", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestGetUsersComputesExpiryFields(t *testing.T) {
	f := newFixture(t)
	f.graph.configured = true
	f.graph.users = []domain.DirectoryUser{
		{ID: "u1", UserPrincipalName: "alice@corp.test", PasswordPolicies: "DisablePasswordExpiration"},
	}

	w := f.do(t, http.MethodGet, "/api/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	users := body["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("users = %d, want 1", len(users))
	}
	u := users[0].(map[string]any)
	if u["neverExpires"] != true {
		t.Errorf("neverExpires = %v, want true", u["neverExpires"])
	}
	if u["passwordExpiresInDays"] != float64(domain.NeverExpiresSentinel) {
		t.Errorf("passwordExpiresInDays = %v, want %d", u["passwordExpiresInDays"], domain.NeverExpiresSentinel)
	}
	stats := body["stats"].(map[string]any)
	if stats["total"] != float64(1) || stats["neverExpires"] != float64(1) {
		t.Errorf("stats = %v, want 1 total, 1 neverExpires", stats)
	}
}

func TestVerifyGroupNotFound(t *testing.T) {
	f := newFixture(t)
	f.graph.groups = map[string]domain.Group{}

	w := f.do(t, http.MethodPost, "/api/verify-group", gin.H{"name": "Ghosts"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestVerifyGroupCountsTransitiveMembers(t *testing.T) {
	f := newFixture(t)
	f.graph.groups = map[string]domain.Group{"IT Staff": {ID: "g1", DisplayName: "IT Staff"}}
	f.graph.members = map[string][]domain.DirectoryUser{"g1": {{ID: "u1"}, {ID: "u2"}}}

	w := f.do(t, http.MethodPost, "/api/verify-group", gin.H{"name": "IT Staff"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}
	if _, present := body["members"]; present && body["members"] != nil {
		t.Fatal("plain verify must not include members")
	}
}

func TestVerifyGroupDetailedIncludesMembers(t *testing.T) {
	f := newFixture(t)
	f.graph.groups = map[string]domain.Group{"IT Staff": {ID: "g1"}}
	f.graph.members = map[string][]domain.DirectoryUser{
		"g1": {{ID: "u1", UserPrincipalName: "alice@corp.test", PasswordPolicies: "DisablePasswordExpiration"}},
	}

	w := f.do(t, http.MethodPost, "/api/verify-group-detailed", gin.H{"name": "IT Staff"})
	body := decode(t, w)
	members := body["members"].([]any)
	if len(members) != 1 {
		t.Fatalf("members = %d, want 1", len(members))
	}
	if members[0].(map[string]any)["neverExpires"] != true {
		t.Error("detailed members missing derived expiry fields")
	}
}

func TestEnvironmentsAddAndSwitch(t *testing.T) {
	f := newFixture(t)
	f.envs.GetActive() // seeds the default environment

	w := f.do(t, http.MethodPost, "/api/environments", gin.H{"action": "add", "name": "Staging"})
	if w.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", w.Code, w.Body.String())
	}
	env := decode(t, w)["environment"].(map[string]any)
	id := env["id"].(string)
	if env["active"] != true {
		t.Error("new environment must become active")
	}

	w = f.do(t, http.MethodPost, "/api/environments", gin.H{"action": "switch", "id": "default"})
	if w.Code != http.StatusOK {
		t.Fatalf("switch status = %d", w.Code)
	}
	if got := decode(t, w)["environment"].(map[string]any)["id"]; got != "default" {
		t.Fatalf("active after switch = %v, want default", got)
	}

	w = f.do(t, http.MethodPost, "/api/environments", gin.H{"action": "switch", "id": id})
	if w.Code != http.StatusOK {
		t.Fatalf("switch back status = %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/api/environments", gin.H{"action": "switch", "id": "missing"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("switch to unknown = %d, want 404", w.Code)
	}
}

func TestEnvironmentsRedactSecrets(t *testing.T) {
	f := newFixture(t)
	active := f.envs.GetActive()
	if err := f.envs.Update(active.ID,
		&domain.GraphConfig{TenantID: "t", ClientID: "c", ClientSecret: "hunter2"},
		&domain.SMTPConfig{Host: "mail", Password: "hunter2"},
	); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	for _, path := range []string{"/api/config", "/api/environments"} {
		w := f.do(t, http.MethodGet, path, nil)
		if bytes.Contains(w.Body.Bytes(), []byte("hunter2")) {
			t.Fatalf("%s leaked a credential: %s", path, w.Body.String())
		}
	}
}

func TestValidatePermissionsReportsFailure(t *testing.T) {
	f := newFixture(t)
	f.envs.GetActive() // seeds the default environment
	f.graph.tokenErr = apperr.NewAuthFailureError("AADSTS7000215: invalid client secret", nil)

	w := f.do(t, http.MethodPost, "/api/validate-permissions", gin.H{"tenantId": "t", "clientId": "c", "clientSecret": "bad"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 on failed check", w.Code)
	}
	body := decode(t, w)
	if body["success"] != false {
		t.Error("success must be false on auth failure")
	}
	if body["message"] == "" {
		t.Error("provider error text must be surfaced")
	}
	checks := body["checks"].(map[string]any)
	if checks["auth"] != false {
		t.Error("auth check must be false")
	}

	// The outcome is persisted on the active environment.
	if f.envs.GetActive().LastValidation.Timestamp == nil {
		t.Error("validation outcome not persisted")
	}
}

func TestValidatePermissionsScopeFailure(t *testing.T) {
	f := newFixture(t)
	f.graph.scopeErr = apperr.NewAuthFailureError("Insufficient privileges", nil)

	w := f.do(t, http.MethodPost, "/api/validate-permissions", gin.H{"tenantId": "t", "clientId": "c", "clientSecret": "s"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 when a scope check fails", w.Code)
	}
	checks := decode(t, w)["checks"].(map[string]any)
	if checks["auth"] != true || checks["userScope"] != false {
		t.Fatalf("checks = %v, want auth true with failed scopes", checks)
	}
}

func TestValidatePermissionsAllPass(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/validate-permissions", gin.H{"tenantId": "t", "clientId": "c", "clientSecret": "s"})
	body := decode(t, w)
	if body["success"] != true {
		t.Fatalf("success = %v: %s", body["success"], w.Body.String())
	}
}

func TestTestSMTPReportsProbeError(t *testing.T) {
	f := newFixture(t)
	f.verifier.err = apperr.NewDeliveryFailureError("relay", nil)

	w := f.do(t, http.MethodPost, "/api/test-smtp", gin.H{})
	body := decode(t, w)
	if body["success"] != false || body["error"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestProfileCRUD(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/profiles", gin.H{
		"name":          "Reminders",
		"subjectLine":   "Heads up",
		"emailTemplate": "body",
		"cadence":       gin.H{"daysBefore": []int{14, 7, 1}},
		"status":        "active",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", w.Code, w.Body.String())
	}
	id := decode(t, w)["profile"].(map[string]any)["id"].(string)

	w = f.do(t, http.MethodGet, "/api/profiles", nil)
	if got := len(decode(t, w)["profiles"].([]any)); got != 1 {
		t.Fatalf("profiles = %d, want 1", got)
	}

	w = f.do(t, http.MethodDelete, "/api/profiles/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = f.do(t, http.MethodDelete, "/api/profiles/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("repeat delete = %d, want 404", w.Code)
	}
}

func TestSaveProfileRejectsMalformedCadence(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/profiles", gin.H{
		"name":          "Broken",
		"subjectLine":   "s",
		"emailTemplate": "b",
		"cadence":       gin.H{"daysBefore": []int{7, 7}},
		"status":        "active",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestRunJobConflict(t *testing.T) {
	f := newFixture(t)
	f.job.err = apperr.NewJobAlreadyRunningError()

	w := f.do(t, http.MethodPost, "/api/run-job", gin.H{"profileId": "p1", "mode": "live"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestRunJobRejectsUnknownMode(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/run-job", gin.H{"profileId": "p1", "mode": "blast"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestQueueLifecycle(t *testing.T) {
	f := newFixture(t)
	if err := f.queue.Enqueue(domain.QueueItem{Recipient: "alice@corp.test", ProfileID: "p1", Offset: 7}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	w := f.do(t, http.MethodGet, "/api/queue", nil)
	state := decode(t, w)
	items := state["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	id := items[0].(map[string]any)["id"].(string)

	w = f.do(t, http.MethodPost, "/api/queue/toggle", nil)
	if decode(t, w)["paused"] != true {
		t.Fatal("toggle must pause an unpaused queue")
	}

	w = f.do(t, http.MethodPost, "/api/queue/cancel", gin.H{"id": id})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", w.Code)
	}
	if got := len(f.queue.State().Items); got != 0 {
		t.Fatalf("items after cancel = %d, want 0", got)
	}

	if err := f.queue.Enqueue(domain.QueueItem{Recipient: "bob@corp.test", ProfileID: "p1", Offset: 7}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	w = f.do(t, http.MethodPost, "/api/queue/clear", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	state2 := f.queue.State()
	if len(state2.Items) != 0 {
		t.Fatal("clear must drop all items")
	}
	if !state2.Paused {
		t.Fatal("clear must keep the pause flag")
	}
}
