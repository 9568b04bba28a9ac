// Package reaper はアクセスが途絶えたブラウザの表示状態を定期的に破棄するジョブを提供する。
// 破棄するとセッションクライアントのリフレッシュタイマーと購読も解放される。
package reaper

import (
	"context"
	"log/slog"
	"time"
)

// Target は破棄対象を保持するインターフェース。*browser.Registryが満たす。
type Target interface {
	Reap(idleTTL time.Duration) int
	Len() int
}

// Recorder は破棄結果を記録するインターフェース。metrics.Collectorが満たす。
type Recorder interface {
	RecordBrowsersReaped(count int)
	SetActiveBrowsers(count int)
}

// Job は表示状態の定期破棄ジョブ。
type Job struct {
	target   Target
	recorder Recorder
	logger   *slog.Logger

	IdleTTL  time.Duration // 最終アクセスからの保持期間（デフォルト: 24時間）
	Interval time.Duration // 実行間隔（デフォルト: 10分）
}

// NewJob は新しいJobを生成する。recorderはnilでもよい。
func NewJob(target Target, recorder Recorder, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		target:   target,
		recorder: recorder,
		logger:   logger,
		IdleTTL:  24 * time.Hour,
		Interval: 10 * time.Minute,
	}
}

// Run は保持期間を超過した表示状態を1回破棄し、破棄した件数を返す。
// 冪等: 対象がない場合でも何もせず0を返す。
func (j *Job) Run() int {
	start := time.Now()

	reaped := j.target.Reap(j.IdleTTL)
	active := j.target.Len()

	if j.recorder != nil {
		j.recorder.RecordBrowsersReaped(reaped)
		j.recorder.SetActiveBrowsers(active)
	}

	j.logger.Info("ブラウザ状態の破棄ジョブが完了しました",
		slog.Int("reaped_count", reaped),
		slog.Int("active_count", active),
		slog.Float64("idle_ttl_hours", j.IdleTTL.Hours()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return reaped
}

// Start はctxが終了するまでInterval間隔でRunを繰り返す。ブロッキング。
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run()
		}
	}
}
