package stats

import (
	"time"
)

// DateLayout は日付の入出力フォーマット。
const DateLayout = "2006-01-02"

// trailingWindowDays は既定の集計期間の開始日が何日前かを表す。
const trailingWindowDays = 7

// Clock は現在時刻を返す関数。テストでは固定時刻を注入する。
type Clock func() time.Time

// SystemClock はUTCの現在時刻を返すClock。
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Period は両端を含む日付の期間を表す。StartとEndはUTCの0時に正規化される。
type Period struct {
	Start time.Time
	End   time.Time
}

// TrailingWeek はnowの前日を終端とする直近1週間 [7日前, 1日前] を返す。
// 当日はまだ終わっていないため含めない。
func TrailingWeek(now time.Time) Period {
	today := Date(now)
	return Period{
		Start: today.AddDate(0, 0, -trailingWindowDays),
		End:   today.AddDate(0, 0, -1),
	}
}

// SpanDays は End - Start の日数を返す。StartがEndより後の場合は負になる。
func (p Period) SpanDays() int {
	return int(p.End.Sub(p.Start).Hours() / 24)
}

// StartString はStartをYYYY-MM-DD形式で返す。
func (p Period) StartString() string {
	return p.Start.Format(DateLayout)
}

// EndString はEndをYYYY-MM-DD形式で返す。
func (p Period) EndString() string {
	return p.End.Format(DateLayout)
}

// Date はtの暦日をUTCの0時として返す。
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate はYYYY-MM-DD形式の日付を解析する。
// 空文字列や解析できない値の場合はokにfalseを返す。
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
