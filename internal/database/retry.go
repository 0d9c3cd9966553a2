package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

// DefaultRetryDelay は一時的エラー発生時に再試行するまでの待機時間。
const DefaultRetryDelay = 100 * time.Millisecond

// IsTransient はリトライしてよい一時的なドライバエラーかを判定する。
// 対象はコネクションプール経由で発生するprepared statement名の重複（SQLSTATE 42P05）のみ。
// 失敗したステートメントは準備段階で拒否されており、書き込みは行われていない。
func IsTransient(err error) bool {
	return hasCode(err, pgerrcode.DuplicatePreparedStatement)
}

// IsUniqueViolation は一意制約違反（SQLSTATE 23505）かを判定する。
func IsUniqueViolation(err error) bool {
	return hasCode(err, pgerrcode.UniqueViolation)
}

func hasCode(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}

// RetryPolicy は一時的エラーに対する再試行ポリシー。
// 再試行は1回のみで、IsTransientに該当しないエラーはそのまま返す。
type RetryPolicy struct {
	Delay time.Duration
	// OnRetry は再試行の直前に呼ばれる。メトリクス記録用。nilでもよい。
	OnRetry func(op string)
}

// NewRetryPolicy は指定した待機時間のRetryPolicyを生成する。
// delayが0以下の場合はDefaultRetryDelayを使う。
func NewRetryPolicy(delay time.Duration) RetryPolicy {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return RetryPolicy{Delay: delay}
}

// Do はfnを実行し、一時的エラーの場合に限り固定待機後に1回だけ再実行する。
// opはログとメトリクスに使う操作名。
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := p.Delay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	backoff := retry.WithMaxRetries(1, retry.NewConstant(delay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 && p.OnRetry != nil {
			p.OnRetry(op)
		}
		attempt++

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			slog.WarnContext(ctx, "transient database error, retrying",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return retry.RetryableError(err)
		}
		return err
	})
}
