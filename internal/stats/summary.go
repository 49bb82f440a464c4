// Package stats は睡眠集計で共有する数値計算・期間・ページング・並び順のヘルパーを提供する。
// 自分のサマリーとフォロー中ユーザーのサマリーは、同じ集計ロジックを
// 異なる設定（ページ上限・タイブレーク）で利用する。
package stats

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Totals は日次サマリー群から得られる集計の基礎量。
type Totals struct {
	TotalDays     int // 日次サマリーの行数
	TotalMinutes  int // total_sleep_duration_minutes の合計
	TotalSessions int // number_of_sleep_sessions の合計
	DaysWithSleep int // total_sleep_duration_minutes > 0 の行数
}

// Summary は集計結果の9つの数値フィールドを表す。
type Summary struct {
	TotalSleepDurationMinutes  int
	TotalSleepDurationHours    float64
	TotalNumberOfSleepSessions int
	AverageSleepMinutesPerDay  float64
	AverageSleepHoursPerDay    float64
	AverageSleepSessionsPerDay float64
	DaysWithSleep              int
	TotalDays                  int
	SleepEfficiencyPercentage  float64
}

// Round2 は小数点以下2桁に丸める。
// 10進表記でちょうど中間になる値（1.025など）は0から遠い方向に丸める。
// 1.025*100は二進浮動小数点では102.4999...になるため、切り上げ側の境界と比較して補正する。
func Round2(v float64) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	scaled, err := stats.Round(v*100, 0)
	if err != nil {
		// NaNのみがエラーになる。集計値としては0に倒す。
		return 0
	}
	switch {
	case v > 0 && (scaled+0.5)/100 <= v:
		scaled++
	case v < 0 && (scaled-0.5)/100 >= v:
		scaled--
	}
	return scaled / 100
}

// Summarize は基礎量から派生値を計算する。
//
// TotalDaysが0の場合はすべて0のサマリーを返し、除算を行わない。
// 1日あたりの平均時間は、丸め済みの1日あたり平均分数を60で割ってから再度丸める。
// round(total/(days*60)) とは結果が異なる場合がある。
func Summarize(t Totals) Summary {
	if t.TotalDays == 0 {
		return Summary{}
	}

	minutes := float64(t.TotalMinutes)
	days := float64(t.TotalDays)

	avgMinutes := Round2(minutes / days)

	return Summary{
		TotalSleepDurationMinutes:  t.TotalMinutes,
		TotalSleepDurationHours:    Round2(minutes / 60),
		TotalNumberOfSleepSessions: t.TotalSessions,
		AverageSleepMinutesPerDay:  avgMinutes,
		AverageSleepHoursPerDay:    Round2(avgMinutes / 60),
		AverageSleepSessionsPerDay: Round2(float64(t.TotalSessions) / days),
		DaysWithSleep:              t.DaysWithSleep,
		TotalDays:                  t.TotalDays,
		SleepEfficiencyPercentage:  Round2(float64(t.DaysWithSleep) / days * 100),
	}
}
