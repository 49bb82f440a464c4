package materialize

import "time"

const (
	// initialDequeueBackoff はキュー取得失敗時の初回待機時間。
	initialDequeueBackoff = time.Second
	// maxDequeueBackoff はキュー取得失敗時の最大待機時間。
	maxDequeueBackoff = 30 * time.Second
)

// dequeueBackoff は連続した取得失敗回数に基づいて指数バックオフの待機時間を計算する。
// 初回1秒、2倍ずつ増加、最大30秒。
func dequeueBackoff(consecutiveErrors int) time.Duration {
	delay := initialDequeueBackoff
	for i := 1; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxDequeueBackoff {
			return maxDequeueBackoff
		}
	}
	return delay
}
