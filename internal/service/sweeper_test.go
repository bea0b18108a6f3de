package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/SergeiKhy/shortlink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedLink кладёт запись напрямую в моковое хранилище
func seedLink(t *testing.T, repo *mocks.MockLinkRepository, shortID string, expiresAt *time.Time) {
	t.Helper()
	err := repo.Insert(context.Background(), &models.Link{
		ShortID:     shortID,
		OriginalURL: "https://example.com/" + shortID,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
}

// TestExpirySweeper_SweepExpired проверяет, что удаляются только просроченные записи
func TestExpirySweeper_SweepExpired(t *testing.T) {
	linkRepo := mocks.NewMockLinkRepository()
	logger, _ := zap.NewDevelopment()
	sweeper := service.NewExpirySweeper(linkRepo, logger, time.Minute)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	seedLink(t, linkRepo, "dead01", &past)
	seedLink(t, linkRepo, "dead02", &past)
	seedLink(t, linkRepo, "alive1", &future)
	seedLink(t, linkRepo, "keeper", nil) // без expires_at живёт вечно

	removed, err := sweeper.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	// Живые записи на месте
	_, err = linkRepo.FindByShortID(context.Background(), "alive1")
	assert.NoError(t, err)
	_, err = linkRepo.FindByShortID(context.Background(), "keeper")
	assert.NoError(t, err)
}

// TestExpirySweeper_SweepExpired_Empty проверяет проход по пустому хранилищу
func TestExpirySweeper_SweepExpired_Empty(t *testing.T) {
	linkRepo := mocks.NewMockLinkRepository()
	sweeper := service.NewExpirySweeper(linkRepo, nil, time.Minute)

	removed, err := sweeper.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

// TestExpirySweeper_StartStop проверяет фоновый цикл: уборка по тику и
// корректная остановка
func TestExpirySweeper_StartStop(t *testing.T) {
	linkRepo := mocks.NewMockLinkRepository()
	sweeper := service.NewExpirySweeper(linkRepo, nil, 20*time.Millisecond)

	past := time.Now().Add(-time.Minute)
	seedLink(t, linkRepo, "dead03", &past)

	sweeper.Start()

	// Ждём несколько тиков
	assert.Eventually(t, func() bool {
		_, err := linkRepo.FindByShortID(context.Background(), "dead03")
		return err != nil
	}, time.Second, 10*time.Millisecond, "Просроченная запись должна быть удалена фоновым проходом")

	sweeper.Stop()
}
