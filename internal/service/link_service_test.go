package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/SergeiKhy/shortlink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestService создаёт тестовое окружение с моковыми репозиториями
func setupTestService() (service.LinkService, *mocks.MockLinkRepository, *mocks.MockCacheRepository) {
	linkRepo := mocks.NewMockLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	logger, _ := zap.NewDevelopment()
	linkService := service.NewLinkService(linkRepo, cacheRepo, logger, service.Options{})
	return linkService, linkRepo, cacheRepo
}

func strPtr(s string) *string {
	return &s
}

// TestLinkService_CreateLink_Success проверяет успешное создание ссылки
func TestLinkService_CreateLink_Success(t *testing.T) {
	linkService, _, cacheRepo := setupTestService()

	input := &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	}

	ctx := context.Background()
	link, err := linkService.CreateLink(ctx, input)

	require.NoError(t, err)
	assert.Len(t, link.ShortID, 6, "Длина сгенерированного кода должна быть 6 символов")
	assert.Equal(t, input.OriginalURL, link.OriginalURL)
	assert.Nil(t, link.OwnerID)
	assert.NotZero(t, link.CreatedAt)

	// Создание прописывает положительную запись в кэш (write-through)
	assert.True(t, cacheRepo.HasPositive(link.ShortID))
}

// TestLinkService_CreateLink_WithCustomShortID проверяет создание с кастомным кодом
func TestLinkService_CreateLink_WithCustomShortID(t *testing.T) {
	linkService, _, _ := setupTestService()

	input := &models.CreateLinkInput{
		OriginalURL:   "https://example.com/test",
		CustomShortID: strPtr("custom123"),
	}

	ctx := context.Background()
	link, err := linkService.CreateLink(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, "custom123", link.ShortID)
}

// TestLinkService_CreateLink_ShortIDTaken проверяет конфликт по занятому коду
func TestLinkService_CreateLink_ShortIDTaken(t *testing.T) {
	linkService, _, _ := setupTestService()

	ctx := context.Background()
	input := &models.CreateLinkInput{
		OriginalURL:   "https://example.com/first",
		CustomShortID: strPtr("custom123"),
	}
	_, err := linkService.CreateLink(ctx, input)
	require.NoError(t, err)

	// Повторное создание с тем же кодом должно упасть
	second := &models.CreateLinkInput{
		OriginalURL:   "https://example.com/second",
		CustomShortID: strPtr("custom123"),
	}
	link, err := linkService.CreateLink(ctx, second)

	assert.ErrorIs(t, err, repository.ErrShortIDTaken)
	assert.Nil(t, link)
}

// TestLinkService_CreateLink_ConcurrentSameCustomID проверяет, что при
// гонке за один кастомный код побеждает ровно один создатель
func TestLinkService_CreateLink_ConcurrentSameCustomID(t *testing.T) {
	linkService, _, _ := setupTestService()

	ctx := context.Background()
	const goroutines = 10

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			input := &models.CreateLinkInput{
				OriginalURL:   fmt.Sprintf("https://example.com/race-%d", id),
				CustomShortID: strPtr("race1234"),
			}
			_, err := linkService.CreateLink(ctx, input)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, repository.ErrShortIDTaken):
			conflicted++
		default:
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded, "Успешным должен быть ровно один create")
	assert.Equal(t, goroutines-1, conflicted)
}

// TestLinkService_CreateLink_InvalidURL проверяет отклонение невалидного URL
func TestLinkService_CreateLink_InvalidURL(t *testing.T) {
	linkService, _, _ := setupTestService()

	invalidURLs := []string{
		"not-a-url",
		"ftp://example.com",
		"",
		"example.com",
		"https://",
	}

	ctx := context.Background()
	for _, rawURL := range invalidURLs {
		link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{OriginalURL: rawURL})
		assert.ErrorIs(t, err, service.ErrInvalidURL, "URL должен быть невалидным: %s", rawURL)
		assert.Nil(t, link)
	}
}

// TestLinkService_CreateLink_InvalidCustomCode проверяет валидацию кастомного кода
func TestLinkService_CreateLink_InvalidCustomCode(t *testing.T) {
	linkService, _, _ := setupTestService()

	invalidCodes := []string{"ab", "toolongcustomcode123", "invalid@code"}

	ctx := context.Background()
	for _, code := range invalidCodes {
		input := &models.CreateLinkInput{
			OriginalURL:   "https://example.com/test",
			CustomShortID: strPtr(code),
		}
		link, err := linkService.CreateLink(ctx, input)

		assert.ErrorIs(t, err, service.ErrInvalidCode)
		assert.Nil(t, link)
	}
}

// TestLinkService_ResolveLink_CacheHitSkipsAnalytics проверяет, что при
// попадании в кэш счётчик посещений НЕ инкрементируется (осознанный
// размен точности аналитики на латентность)
func TestLinkService_ResolveLink_CacheHitSkipsAnalytics(t *testing.T) {
	linkService, linkRepo, _ := setupTestService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/cached",
	})
	require.NoError(t, err)

	// Создание положило ссылку в кэш, резолв попадает в кэш
	resolved, err := linkService.ResolveLink(ctx, created.ShortID, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, created.OriginalURL, resolved.OriginalURL)

	// Счётчик в БД не изменился
	stored, err := linkRepo.FindByShortID(ctx, created.ShortID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.VisitCount)
}

// TestLinkService_ResolveLink_StoreBackedIncrementsVisits проверяет, что
// N резолвов мимо кэша увеличивают счётчик ровно на N и дописывают N кликов
func TestLinkService_ResolveLink_StoreBackedIncrementsVisits(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/counted",
	})
	require.NoError(t, err)

	const visits = 5
	for i := 0; i < visits; i++ {
		// Сбрасываем кэш, чтобы каждый резолв шёл в БД
		cacheRepo.Reset()

		resolved, err := linkService.ResolveLink(ctx, created.ShortID, "192.168.1.1")
		require.NoError(t, err)
		assert.Equal(t, created.OriginalURL, resolved.OriginalURL)

		// Резолв восстанавливает положительную запись кэша
		assert.True(t, cacheRepo.HasPositive(created.ShortID))
	}

	stored, err := linkRepo.FindByShortID(ctx, created.ShortID)
	require.NoError(t, err)
	assert.Equal(t, int64(visits), stored.VisitCount)

	clicks, err := linkRepo.ListClicks(ctx, stored.ID)
	require.NoError(t, err)
	require.Len(t, clicks, visits)
	for _, click := range clicks {
		assert.Equal(t, "192.168.1.1", click.IPAddress)
	}
}

// TestLinkService_ResolveLink_NotFoundCachesNegative проверяет, что промах
// по БД оставляет в кэше негативную запись
func TestLinkService_ResolveLink_NotFoundCachesNegative(t *testing.T) {
	linkService, _, cacheRepo := setupTestService()

	ctx := context.Background()
	link, err := linkService.ResolveLink(ctx, "fake123", "127.0.0.1")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Nil(t, link)
	assert.True(t, cacheRepo.HasNegative("fake123"))
}

// TestLinkService_ResolveLink_NegativeCacheShortCircuits проверяет, что
// негативная запись отвечает NotFound без похода в БД
func TestLinkService_ResolveLink_NegativeCacheShortCircuits(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService()

	ctx := context.Background()
	require.NoError(t, cacheRepo.SetNotFound(ctx, "ghost1", time.Minute))

	// Отключаем БД: если резолв пойдёт в неё, тест упадёт
	linkRepo.ForcedErr = errors.New("store must not be touched")

	link, err := linkService.ResolveLink(ctx, "ghost1", "127.0.0.1")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Nil(t, link)
}

// TestLinkService_ResolveLink_ExpiredDeleted проверяет, что просроченная
// ссылка не резолвится и физически удаляется при попытке
func TestLinkService_ResolveLink_ExpiredDeleted(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService()

	ctx := context.Background()
	expired := time.Now().Add(-time.Second)
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/expired",
		ExpiresAt:   &expired,
	})
	require.NoError(t, err)

	// Мимо кэша, чтобы сработала проверка expires_at
	cacheRepo.Reset()

	link, err := linkService.ResolveLink(ctx, created.ShortID, "127.0.0.1")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Nil(t, link)

	// Запись физически удалена из хранилища
	_, err = linkRepo.FindByShortID(ctx, created.ShortID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.False(t, cacheRepo.HasPositive(created.ShortID))
}

// TestLinkService_ResolveLink_CacheOutageDegrades проверяет, что отказ
// кэша не ломает резолв: ответ приходит из БД
func TestLinkService_ResolveLink_CacheOutageDegrades(t *testing.T) {
	linkService, _, cacheRepo := setupTestService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/degraded",
	})
	require.NoError(t, err)

	cacheRepo.ForcedErr = errors.New("redis: connection refused")

	resolved, err := linkService.ResolveLink(ctx, created.ShortID, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, created.OriginalURL, resolved.OriginalURL)
}

// TestLinkService_UpdateLink_Success проверяет смену URL владельцем
func TestLinkService_UpdateLink_Success(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService()

	ctx := context.Background()
	ownerID := "3f1f9a10-71b9-4c3f-8a6d-111111111111"
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/old",
		OwnerID:     strPtr(ownerID),
	})
	require.NoError(t, err)

	updated, err := linkService.UpdateLink(ctx, created.ShortID, ownerID, "https://example.com/new")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", updated.OriginalURL)

	// БД и кэш обновлены
	stored, err := linkRepo.FindByShortID(ctx, created.ShortID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", stored.OriginalURL)

	cachedURL, err := cacheRepo.GetURL(ctx, created.ShortID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", cachedURL)
}

// TestLinkService_UpdateLink_Unauthorized проверяет запрет изменения чужой ссылки
func TestLinkService_UpdateLink_Unauthorized(t *testing.T) {
	linkService, linkRepo, _ := setupTestService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/owned",
		OwnerID:     strPtr("3f1f9a10-71b9-4c3f-8a6d-111111111111"),
	})
	require.NoError(t, err)

	updated, err := linkService.UpdateLink(ctx, created.ShortID, "3f1f9a10-71b9-4c3f-8a6d-222222222222", "https://other.com")

	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.Nil(t, updated)

	// Запись не изменилась
	stored, err := linkRepo.FindByShortID(ctx, created.ShortID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/owned", stored.OriginalURL)
}

// TestLinkService_UpdateLink_AnonymousLink проверяет, что анонимную ссылку
// не может изменить никакой владелец
func TestLinkService_UpdateLink_AnonymousLink(t *testing.T) {
	linkService, _, _ := setupTestService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/anon",
	})
	require.NoError(t, err)

	updated, err := linkService.UpdateLink(ctx, created.ShortID, "3f1f9a10-71b9-4c3f-8a6d-111111111111", "https://other.com")

	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.Nil(t, updated)
}

// TestLinkService_DeleteLink_Success проверяет удаление ссылки владельцем
func TestLinkService_DeleteLink_Success(t *testing.T) {
	linkService, linkRepo, cacheRepo := setupTestService()

	ctx := context.Background()
	ownerID := "3f1f9a10-71b9-4c3f-8a6d-111111111111"
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/doomed",
		OwnerID:     strPtr(ownerID),
	})
	require.NoError(t, err)

	err = linkService.DeleteLink(ctx, created.ShortID, ownerID)
	require.NoError(t, err)

	// Проверяем, что ссылка удалена из БД и из кэша
	_, err = linkRepo.FindByShortID(ctx, created.ShortID)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.False(t, cacheRepo.HasPositive(created.ShortID))
}

// TestLinkService_DeleteLink_NotFound проверяет удаление несуществующей ссылки
func TestLinkService_DeleteLink_NotFound(t *testing.T) {
	linkService, _, _ := setupTestService()

	ctx := context.Background()
	err := linkService.DeleteLink(ctx, "nonexistent", "3f1f9a10-71b9-4c3f-8a6d-111111111111")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

// TestLinkService_DeleteLink_Unauthorized проверяет запрет удаления чужой ссылки
func TestLinkService_DeleteLink_Unauthorized(t *testing.T) {
	linkService, linkRepo, _ := setupTestService()

	ctx := context.Background()
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/protected",
		OwnerID:     strPtr("3f1f9a10-71b9-4c3f-8a6d-111111111111"),
	})
	require.NoError(t, err)

	err = linkService.DeleteLink(ctx, created.ShortID, "3f1f9a10-71b9-4c3f-8a6d-222222222222")
	assert.ErrorIs(t, err, service.ErrUnauthorized)

	// Ссылка на месте
	_, err = linkRepo.FindByShortID(ctx, created.ShortID)
	assert.NoError(t, err)
}

// TestLinkService_ListOwned проверяет выборку ссылок владельца
func TestLinkService_ListOwned(t *testing.T) {
	linkService, _, _ := setupTestService()

	ctx := context.Background()
	ownerID := "3f1f9a10-71b9-4c3f-8a6d-111111111111"

	for i := 0; i < 3; i++ {
		_, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
			OriginalURL: fmt.Sprintf("https://example.com/owned-%d", i),
			OwnerID:     strPtr(ownerID),
		})
		require.NoError(t, err)
	}
	// Чужая и анонимная ссылки в выборку не попадают
	_, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/other",
		OwnerID:     strPtr("3f1f9a10-71b9-4c3f-8a6d-222222222222"),
	})
	require.NoError(t, err)
	_, err = linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/anon",
	})
	require.NoError(t, err)

	links, err := linkService.ListOwned(ctx, ownerID)
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

// TestLinkService_GetStats проверяет выдачу статистики владельцу
func TestLinkService_GetStats(t *testing.T) {
	linkService, _, cacheRepo := setupTestService()

	ctx := context.Background()
	ownerID := "3f1f9a10-71b9-4c3f-8a6d-111111111111"
	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/tracked",
		OwnerID:     strPtr(ownerID),
	})
	require.NoError(t, err)

	// Два визита мимо кэша
	for i := 0; i < 2; i++ {
		cacheRepo.Reset()
		_, err := linkService.ResolveLink(ctx, created.ShortID, "10.1.1.1")
		require.NoError(t, err)
	}

	stats, err := linkService.GetStats(ctx, created.ShortID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, created.ShortID, stats.ShortID)
	assert.Equal(t, int64(2), stats.VisitCount)
	require.Len(t, stats.Clicks, 2)
	assert.Equal(t, "10.1.1.1", stats.Clicks[0].IPAddress)

	// Чужому владельцу статистика недоступна (выглядит как NotFound)
	_, err = linkService.GetStats(ctx, created.ShortID, "3f1f9a10-71b9-4c3f-8a6d-222222222222")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}
