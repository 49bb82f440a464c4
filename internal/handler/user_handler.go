package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sleeptrack/internal/middleware"
	"github.com/hitoshi/sleeptrack/internal/model"
	"github.com/hitoshi/sleeptrack/internal/stats"
	"github.com/hitoshi/sleeptrack/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Create(ctx context.Context, name string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, page, perPage int) (*user.UserPage, error)
}

// FollowServiceInterface はフォロー操作が必要とするサービスインターフェース。
type FollowServiceInterface interface {
	Follow(ctx context.Context, followerID, followedID string) (*model.Follow, error)
	Unfollow(ctx context.Context, followerID, followedID string) error
}

// UserHandler はユーザー管理とフォロー操作のHTTPハンドラー。
type UserHandler struct {
	service       UserServiceInterface
	followService FollowServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, followService FollowServiceInterface) *UserHandler {
	return &UserHandler{
		service:       service,
		followService: followService,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// followResponse はフォロー関係のAPIレスポンス。
type followResponse struct {
	ID         string    `json:"id"`
	FollowerID string    `json:"follower_id"`
	FollowedID string    `json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// pageMeta は一覧APIのページングメタ情報。
type pageMeta struct {
	CurrentPage int  `json:"current_page"`
	NextPage    *int `json:"next_page"`
	PrevPage    *int `json:"prev_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
}

type userListResponse struct {
	Users []userResponse `json:"users"`
	Meta  pageMeta       `json:"meta"`
}

// createUserRequest はユーザー登録リクエストのボディ。
// {"user": {"name": ...}} と {"name": ...} の両方を受け付ける。
type createUserRequest struct {
	User *struct {
		Name string `json:"name"`
	} `json:"user"`
	Name string `json:"name"`
}

func (req createUserRequest) name() string {
	if req.User != nil {
		return req.User.Name
	}
	return req.Name
}

// CreateUser はユーザーを登録する。
// POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	u, err := h.service.Create(r.Context(), req.name())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// ListUsers はユーザー一覧を返す。
// GET /api/v1/users?page=&per_page=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), queryInt(r, "page"), queryInt(r, "per_page"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	users := make([]userResponse, len(page.Users))
	for i, u := range page.Users {
		users[i] = toUserResponse(u)
	}

	writeJSON(w, http.StatusOK, userListResponse{
		Users: users,
		Meta:  toPageMeta(page.Pagination),
	})
}

// GetUser はユーザーを返す。
// GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// Follow は認証ユーザーが指定ユーザーをフォローする。
// POST /api/v1/users/{id}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	f, err := h.followService.Follow(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, followResponse{
		ID:         f.ID,
		FollowerID: f.FollowerID,
		FollowedID: f.FollowedID,
		CreatedAt:  f.CreatedAt,
	})
}

// Unfollow は認証ユーザーのフォローを解除する。
// DELETE /api/v1/users/{id}/unfollow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.followService.Unfollow(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toPageMeta(p stats.PageInfo) pageMeta {
	return pageMeta{
		CurrentPage: p.CurrentPage,
		NextPage:    p.NextPage(),
		PrevPage:    p.PrevPage(),
		TotalPages:  p.TotalPages,
		TotalCount:  p.TotalCount,
	}
}
