package audiogen

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/storyhub/storyhub/internal/metrics"
	"github.com/storyhub/storyhub/internal/model"
	"github.com/storyhub/storyhub/internal/repository"
	"github.com/storyhub/storyhub/internal/storage"
)

// Scheduler は音声生成のスケジューリングと並列制御を行う。
// ティッカーで音声未生成のストーリーを取得し、semaphoreパターンで
// 最大並列数を制御しながら音声合成を実行する。
// 対象ストーリーの確保はFOR UPDATE SKIP LOCKEDで行われるため、
// 複数プロセスで起動しても同じストーリーを二重処理することはない。
type Scheduler struct {
	stories        repository.StoryRepository
	store          storage.ObjectStore
	tts            TTSService
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	maxPerCycle    int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4、
// maxPerCycleが0以下の場合はデフォルト値20を使用する。
func NewScheduler(
	stories repository.StoryRepository,
	store storage.ObjectStore,
	tts TTSService,
	m metrics.MetricsCollector,
	logger *slog.Logger,
	maxConcurrency int,
	maxPerCycle int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	if maxPerCycle <= 0 {
		maxPerCycle = 20
	}
	return &Scheduler{
		stories:        stories,
		store:          store,
		tts:            tts,
		metrics:        m,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		maxPerCycle:    maxPerCycle,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("音声生成スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
		slog.Int("max_per_cycle", s.maxPerCycle),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("音声生成サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("音声生成スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("音声生成サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は音声未生成のストーリーを1回分確保し、並列で音声合成を実行する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	stories, err := s.stories.ClaimPendingForAudio(ctx, s.maxPerCycle)
	if err != nil {
		return err
	}

	if len(stories) == 0 {
		return nil
	}

	s.logger.Info("音声生成サイクルを開始します",
		slog.Int("story_count", len(stories)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, story := range stories {
		wg.Add(1)
		sem <- struct{}{}

		go func(st *model.Story) {
			defer wg.Done()
			defer func() { <-sem }()
			s.process(ctx, st)
		}(story)
	}

	wg.Wait()
	return nil
}

// process は1件のストーリーの音声を生成し、結果を記録する。
// 合成・保存のいずれかに失敗した場合はaudio_statusをfailedにする。
func (s *Scheduler) process(ctx context.Context, story *model.Story) {
	audio, err := s.tts.Synthesize(ctx, story.Content)
	if err != nil {
		s.fail(ctx, story, err)
		return
	}

	key := storage.AudioKey(story.AuthorID, story.ID)
	if err := s.store.Upload(ctx, key, "audio/mpeg", bytes.NewReader(audio), int64(len(audio))); err != nil {
		s.fail(ctx, story, err)
		return
	}

	if err := s.stories.SetAudioResult(ctx, story.ID, key, model.AudioStatusCompleted); err != nil {
		s.logger.Error("音声生成結果の記録に失敗しました",
			slog.String("story_id", story.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.metrics.RecordAudioGenerated()
	s.logger.Info("音声生成が完了しました",
		slog.String("story_id", story.ID),
		slog.Int("audio_bytes", len(audio)),
	)
}

func (s *Scheduler) fail(ctx context.Context, story *model.Story, cause error) {
	s.metrics.RecordAudioFailed()
	s.logger.Error("音声生成に失敗しました",
		slog.String("story_id", story.ID),
		slog.String("error", cause.Error()),
	)
	if err := s.stories.SetAudioResult(ctx, story.ID, "", model.AudioStatusFailed); err != nil {
		s.logger.Error("音声生成失敗の記録に失敗しました",
			slog.String("story_id", story.ID),
			slog.String("error", err.Error()),
		)
	}
}
