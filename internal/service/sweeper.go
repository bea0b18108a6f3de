package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Таймаут одного прохода уборки
const sweepTimeout = 30 * time.Second

// ExpirySweeper периодически удаляет из БД ссылки с истёкшим expires_at.
// Записи кэша при этом не трогаются: они ограничены собственным TTL, а
// резолв сам перепроверяет expires_at при каждом чтении из БД.
type ExpirySweeper struct {
	linkRepo repository.LinkRepository
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewExpirySweeper создаёт новый экземпляр уборщика
func NewExpirySweeper(linkRepo repository.LinkRepository, logger *zap.Logger, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ExpirySweeper{
		linkRepo: linkRepo,
		logger:   logger,
		interval: interval,
	}
}

// Start запускает фоновый цикл уборки
func (s *ExpirySweeper) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("Запуск уборщика просроченных ссылок", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.loop()
}

// Stop корректно останавливает уборщик
func (s *ExpirySweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Уборщик просроченных ссылок остановлен")
}

// loop выполняет проход на каждый тик до отмены контекста
func (s *ExpirySweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
			removed, err := s.SweepExpired(ctx)
			cancel()

			if err != nil {
				s.logger.Error("Проход уборки завершился ошибкой", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("Удалены просроченные ссылки", zap.Int64("count", removed))
			}
		}
	}
}

// SweepExpired удаляет все записи с expires_at не позже текущего момента
// и возвращает количество удалённых. Может вызываться и внешним
// планировщиком напрямую.
func (s *ExpirySweeper) SweepExpired(ctx context.Context) (int64, error) {
	return s.linkRepo.DeleteExpiredBefore(ctx, time.Now())
}
