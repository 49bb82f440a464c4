package stats

import "math"

// Limits はページサイズの既定値と上限を表す。
type Limits struct {
	DefaultPerPage int
	MaxPerPage     int
}

var (
	// SelfLimits は自分の睡眠サマリー（日別内訳）のページング設定。
	SelfLimits = Limits{DefaultPerPage: 25, MaxPerPage: 100}
	// FollowingLimits はフォロー中ユーザーのサマリーのページング設定。
	FollowingLimits = Limits{DefaultPerPage: 25, MaxPerPage: 25}
	// UserListLimits はユーザー一覧・睡眠記録一覧のページング設定。
	UserListLimits = Limits{DefaultPerPage: 25, MaxPerPage: 100}
)

// PageRequest は正規化済みのページ指定。
type PageRequest struct {
	Page    int
	PerPage int
}

// Normalize はページ番号とページサイズを正規化する。
// 1未満のページは1、1未満のページサイズは既定値、上限を超えるページサイズは上限に丸める。
// ページ番号はOffsetがintに収まる範囲に切り詰める。
func (l Limits) Normalize(page, perPage int) PageRequest {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = l.DefaultPerPage
	}
	if perPage > l.MaxPerPage {
		perPage = l.MaxPerPage
	}
	if perPage < 1 {
		perPage = 1
	}
	if maxPage := math.MaxInt / perPage; page > maxPage {
		page = maxPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset はSQLのOFFSETに渡す値を返す。
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// PageInfo はページングのメタ情報。
type PageInfo struct {
	CurrentPage int
	PerPage     int
	TotalCount  int
	TotalPages  int
}

// NewPageInfo はページ指定と総件数からPageInfoを生成する。
func NewPageInfo(req PageRequest, totalCount int) PageInfo {
	totalPages := 0
	if req.PerPage > 0 {
		totalPages = (totalCount + req.PerPage - 1) / req.PerPage
	}
	return PageInfo{
		CurrentPage: req.Page,
		PerPage:     req.PerPage,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
	}
}

// HasNext は次のページが存在する場合にtrueを返す。
func (p PageInfo) HasNext() bool {
	return p.CurrentPage < p.TotalPages
}

// HasPrev は前のページが存在する場合にtrueを返す。
// 範囲外のページを要求した場合は前のページも存在しないものとして扱う。
func (p PageInfo) HasPrev() bool {
	return p.CurrentPage > 1 && p.CurrentPage <= p.TotalPages
}

// NextPage は次のページ番号を返す。存在しない場合はnil。
func (p PageInfo) NextPage() *int {
	if !p.HasNext() {
		return nil
	}
	n := p.CurrentPage + 1
	return &n
}

// PrevPage は前のページ番号を返す。存在しない場合はnil。
func (p PageInfo) PrevPage() *int {
	if !p.HasPrev() {
		return nil
	}
	n := p.CurrentPage - 1
	return &n
}
