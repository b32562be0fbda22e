// Package sweep はオブジェクトストレージの孤児オブジェクトの自動削除ジョブを提供する。
// 投稿の巻き戻し失敗やプロセスクラッシュでDBから参照されなくなった
// オブジェクトを日次バッチで削除する。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storyhub/storyhub/internal/metrics"
	"github.com/storyhub/storyhub/internal/repository"
	"github.com/storyhub/storyhub/internal/storage"
)

// SweepJob はDBから参照されていないオブジェクトの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// アップロード直後でまだレコードに紐づいていないオブジェクトを誤削除
// しないよう、GracePeriodより新しいオブジェクトは対象外とする。
type SweepJob struct {
	stories repository.StoryRepository
	store   storage.ObjectStore
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	// GracePeriod はこの期間より新しいオブジェクトを削除対象から除外する（デフォルト: 24時間）。
	GracePeriod time.Duration
}

// NewSweepJob は新しいSweepJobを生成する。
func NewSweepJob(
	stories repository.StoryRepository,
	store storage.ObjectStore,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *SweepJob {
	return &SweepJob{
		stories:     stories,
		store:       store,
		metrics:     m,
		logger:      logger,
		GracePeriod: 24 * time.Hour,
	}
}

// Run はDBから参照されていない孤児オブジェクトを削除する。
// 参照キー一覧の取得をオブジェクト列挙より先に行うことで、
// 列挙中に投稿された新しいオブジェクトはGracePeriodで保護される。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweepJob) Run(ctx context.Context) error {
	start := time.Now()

	referenced, err := j.stories.ListFilePaths(ctx)
	if err != nil {
		return fmt.Errorf("参照キー一覧の取得に失敗: %w", err)
	}
	refSet := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		refSet[key] = struct{}{}
	}

	objects, err := j.store.List(ctx)
	if err != nil {
		return fmt.Errorf("オブジェクト一覧の取得に失敗: %w", err)
	}

	cutoff := time.Now().Add(-j.GracePeriod)
	deleted := 0
	failed := 0
	for _, obj := range objects {
		if _, ok := refSet[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}

		if err := j.store.Delete(ctx, obj.Key); err != nil {
			failed++
			j.logger.Error("孤児オブジェクトの削除に失敗しました",
				slog.String("key", obj.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		deleted++
		j.logger.Debug("孤児オブジェクトを削除しました",
			slog.String("key", obj.Key),
		)
	}

	j.metrics.RecordOrphansSwept(deleted)
	j.logger.Info("孤児オブジェクト掃除ジョブが完了しました",
		slog.Int("scanned", len(objects)),
		slog.Int("deleted", deleted),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔でRunを繰り返し実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *SweepJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("孤児オブジェクト掃除ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("grace_period", j.GracePeriod),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("孤児オブジェクト掃除ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("孤児オブジェクト掃除ジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
