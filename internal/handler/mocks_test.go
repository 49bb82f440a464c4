package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sleeptrack/internal/middleware"
	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/sleep"
	"github.com/hitoshi/sleeptrack/internal/summary"
	"github.com/hitoshi/sleeptrack/internal/user"
)

// --- モック定義 ---

type mockUserService struct {
	createFn func(ctx context.Context, name string) (*model.User, error)
	getFn    func(ctx context.Context, id string) (*model.User, error)
	listFn   func(ctx context.Context, page, perPage int) (*user.UserPage, error)
}

func (m *mockUserService) Create(ctx context.Context, name string) (*model.User, error) {
	return m.createFn(ctx, name)
}
func (m *mockUserService) Get(ctx context.Context, id string) (*model.User, error) {
	return m.getFn(ctx, id)
}
func (m *mockUserService) List(ctx context.Context, page, perPage int) (*user.UserPage, error) {
	return m.listFn(ctx, page, perPage)
}

type mockFollowService struct {
	followFn   func(ctx context.Context, followerID, followedID string) (*model.Follow, error)
	unfollowFn func(ctx context.Context, followerID, followedID string) error
}

func (m *mockFollowService) Follow(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	return m.followFn(ctx, followerID, followedID)
}
func (m *mockFollowService) Unfollow(ctx context.Context, followerID, followedID string) error {
	return m.unfollowFn(ctx, followerID, followedID)
}

type mockSleepService struct {
	clockInFn  func(ctx context.Context, userID string) (*model.SleepSession, error)
	clockOutFn func(ctx context.Context, userID, sessionID string) (*model.SleepSession, error)
	listFn     func(ctx context.Context, userID string, page, perPage int) (*sleep.SessionPage, error)
}

func (m *mockSleepService) ClockIn(ctx context.Context, userID string) (*model.SleepSession, error) {
	return m.clockInFn(ctx, userID)
}
func (m *mockSleepService) ClockOut(ctx context.Context, userID, sessionID string) (*model.SleepSession, error) {
	return m.clockOutFn(ctx, userID, sessionID)
}
func (m *mockSleepService) List(ctx context.Context, userID string, page, perPage int) (*sleep.SessionPage, error) {
	return m.listFn(ctx, userID, page, perPage)
}

type mockSelfSummaryService struct {
	reportFn func(ctx context.Context, q summary.SelfQuery) (*summary.SelfReport, error)
}

func (m *mockSelfSummaryService) Report(ctx context.Context, q summary.SelfQuery) (*summary.SelfReport, error) {
	return m.reportFn(ctx, q)
}

type mockFollowingSummaryService struct {
	reportFn func(ctx context.Context, q summary.FollowingQuery) (*summary.FollowingReport, error)
}

func (m *mockFollowingSummaryService) Report(ctx context.Context, q summary.FollowingQuery) (*summary.FollowingReport, error) {
	return m.reportFn(ctx, q)
}

type mockUserFinder struct {
	users map[string]*model.User
}

func (m *mockUserFinder) FindByName(ctx context.Context, name string) (*model.User, error) {
	return m.users[name], nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

const testUserID = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"

// withUserID はテスト用に認証済みユーザーIDをコンテキストに注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// newTestRouter はaliceで認証できるルーターを構築する。
// 未設定のサービスはテストで呼ばれた時点でpanicする。
func newTestRouter(deps *RouterDeps) http.Handler {
	deps.UserFinder = &mockUserFinder{users: map[string]*model.User{
		"alice": {ID: testUserID, Name: "alice"},
	}}
	deps.CORSAllowedOrigin = "http://localhost:3000"
	return NewRouter(deps)
}
