package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"calagent/internal/models"
	"calagent/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastParseToken string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockAPIKeys struct {
	issued      service.IssuedKey
	issueErr    error
	keys        []models.APIKey
	listErr     error
	revokeErr   error
	validateID  int
	validateErr error

	lastIssuedName  string
	lastRevokedID   string
	lastValidateKey string
}

func (m *mockAPIKeys) Issue(ctx context.Context, userID int, name string) (service.IssuedKey, error) {
	m.lastIssuedName = name
	return m.issued, m.issueErr
}
func (m *mockAPIKeys) List(ctx context.Context, userID int) ([]models.APIKey, error) {
	return m.keys, m.listErr
}
func (m *mockAPIKeys) Revoke(ctx context.Context, userID int, keyID string) error {
	m.lastRevokedID = keyID
	return m.revokeErr
}
func (m *mockAPIKeys) Validate(ctx context.Context, rawKey string) (int, error) {
	m.lastValidateKey = rawKey
	return m.validateID, m.validateErr
}

type mockSubscriptions struct {
	pushResult service.PushResult
	pushErr    error
	appendN    int
	appendErr  error
	subs       []models.Subscription
	listErr    error
	sub        models.Subscription
	events     []models.Event
	getErr     error
	deleteErr  error

	lastPushInput  service.PushInput
	lastAppendID   string
	lastDeletedID  string
	lastPushUserID int
}

func (m *mockSubscriptions) Push(ctx context.Context, userID int, in service.PushInput) (service.PushResult, error) {
	m.lastPushUserID = userID
	m.lastPushInput = in
	return m.pushResult, m.pushErr
}
func (m *mockSubscriptions) AppendEvents(ctx context.Context, userID int, subscriptionID string, events []service.EventInput) (int, error) {
	m.lastAppendID = subscriptionID
	return m.appendN, m.appendErr
}
func (m *mockSubscriptions) List(ctx context.Context, userID int) ([]models.Subscription, error) {
	return m.subs, m.listErr
}
func (m *mockSubscriptions) Get(ctx context.Context, userID int, id string) (models.Subscription, []models.Event, error) {
	return m.sub, m.events, m.getErr
}
func (m *mockSubscriptions) Delete(ctx context.Context, userID int, id string) error {
	m.lastDeletedID = id
	return m.deleteErr
}
func (m *mockSubscriptions) FeedURL(feedToken string) string {
	return "http://test.local/cal/" + feedToken + ".ics"
}

type mockFeeds struct {
	feed        service.Feed
	renderErr   error
	merged      service.Feed
	mergedErr   error
	masterToken string
	masterErr   error

	lastRenderToken string
	lastMergedToken string
}

func (m *mockFeeds) Render(ctx context.Context, token string) (service.Feed, error) {
	m.lastRenderToken = token
	return m.feed, m.renderErr
}
func (m *mockFeeds) RenderMerged(ctx context.Context, token string) (service.Feed, error) {
	m.lastMergedToken = token
	return m.merged, m.mergedErr
}
func (m *mockFeeds) MasterToken(ctx context.Context, userID int) (string, error) {
	return m.masterToken, m.masterErr
}
func (m *mockFeeds) MasterFeedURL(token string) string {
	return "http://test.local/cal/all/" + token + ".ics"
}

type mockSyncLog struct {
	runs []models.SyncRun
	err  error

	lastSubscriptionID string
	lastLimit          int
}

func (m *mockSyncLog) Recent(ctx context.Context, userID int, subscriptionID string, limit int) ([]models.SyncRun, error) {
	m.lastSubscriptionID = subscriptionID
	m.lastLimit = limit
	return m.runs, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
