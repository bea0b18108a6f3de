package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL   = errors.New("невалидный URL")
	ErrInvalidCode  = errors.New("невалидный кастомный код")
	ErrUnauthorized = errors.New("операция разрешена только владельцу")
)

var customCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// LinkService - движок разрешения коротких ссылок. Все операции ходят в
// Postgres как в источник истины и поддерживают Redis-кэш в роли
// best-effort ускорителя (положительные и негативные записи).
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	ResolveLink(ctx context.Context, shortID string, ipAddress string) (*models.Link, error)
	UpdateLink(ctx context.Context, shortID string, ownerID string, newURL string) (*models.Link, error)
	DeleteLink(ctx context.Context, shortID string, ownerID string) error
	ListOwned(ctx context.Context, ownerID string) ([]models.Link, error)
	GetStats(ctx context.Context, shortID string, ownerID string) (*models.LinkStats, error)
}

type linkService struct {
	linkRepo    repository.LinkRepository
	cacheRepo   repository.CacheRepository
	logger      *zap.Logger
	positiveTTL time.Duration
	negativeTTL time.Duration
	codeLength  int
}

// Options переопределяет TTL кэша и длину генерируемого кода
type Options struct {
	PositiveTTL time.Duration
	NegativeTTL time.Duration
	CodeLength  int
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(linkRepo repository.LinkRepository, cacheRepo repository.CacheRepository, logger *zap.Logger, opts Options) LinkService {
	if opts.PositiveTTL == 0 {
		opts.PositiveTTL = 3600 * time.Second
	}
	if opts.NegativeTTL == 0 {
		opts.NegativeTTL = 300 * time.Second
	}
	if opts.CodeLength == 0 {
		opts.CodeLength = 6
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &linkService{
		linkRepo:    linkRepo,
		cacheRepo:   cacheRepo,
		logger:      logger,
		positiveTTL: opts.PositiveTTL,
		negativeTTL: opts.NegativeTTL,
		codeLength:  opts.CodeLength,
	}
}

// CreateLink создаёт новую короткую ссылку. Проверка short_id перед
// вставкой - только для быстрого ответа: настоящую уникальность
// гарантирует уникальное ограничение в БД, нарушение которого
// транслируется в тот же repository.ErrShortIDTaken.
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	// Валидация URL (защитная, основная - на HTTP-слое)
	if err := validateURL(input.OriginalURL); err != nil {
		return nil, err
	}

	// Выбор идентификатора: кастомный или сгенерированный
	var shortID string
	if input.CustomShortID != nil && *input.CustomShortID != "" {
		if err := validateCustomCode(*input.CustomShortID); err != nil {
			return nil, err
		}
		shortID = *input.CustomShortID
	} else {
		generated, err := generateShortID(s.codeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate short id: %w", err)
		}
		shortID = generated
	}

	// Предварительная проверка занятости
	_, err := s.linkRepo.FindByShortID(ctx, shortID)
	switch {
	case err == nil:
		return nil, repository.ErrShortIDTaken
	case !errors.Is(err, repository.ErrLinkNotFound):
		return nil, err
	}

	link := &models.Link{
		ShortID:     shortID,
		OriginalURL: input.OriginalURL,
		OwnerID:     input.OwnerID,
		ExpiresAt:   input.ExpiresAt,
		CreatedAt:   time.Now(),
	}

	if err := s.linkRepo.Insert(ctx, link); err != nil {
		return nil, err
	}

	// Write-through кэширование; ошибка кэша не прерывает создание
	if err := s.cacheRepo.SetURL(ctx, link.ShortID, link.OriginalURL, s.positiveTTL); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку",
			zap.String("short_id", link.ShortID),
			zap.Error(err),
		)
	}

	return link, nil
}

// ResolveLink возвращает запись по короткому идентификатору и фиксирует
// посещение. Попадание в положительный кэш возвращает урезанное
// представление записи и НЕ инкрементирует счётчик посещений - это
// осознанный размен точности аналитики на латентность.
func (s *linkService) ResolveLink(ctx context.Context, shortID string, ipAddress string) (*models.Link, error) {
	cachedURL, err := s.cacheRepo.GetURL(ctx, shortID)
	switch {
	case err == nil:
		// Cache hit: запись собирается из кэша без похода в БД
		return &models.Link{
			ShortID:     shortID,
			OriginalURL: cachedURL,
			CreatedAt:   time.Now(),
		}, nil
	case errors.Is(err, repository.ErrNegativeCached):
		return nil, repository.ErrLinkNotFound
	case errors.Is(err, repository.ErrCacheMiss):
		// Идём в БД
	default:
		// Отказ кэша деградирует до промаха, но не ломает резолв
		s.logger.Warn("Кэш недоступен, читаем из БД",
			zap.String("short_id", shortID),
			zap.Error(err),
		)
	}

	link, err := s.linkRepo.FindByShortID(ctx, shortID)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			// Негативная запись защищает БД от повторных промахов
			if cacheErr := s.cacheRepo.SetNotFound(ctx, shortID, s.negativeTTL); cacheErr != nil {
				s.logger.Warn("Не удалось записать негативную запись в кэш",
					zap.String("short_id", shortID),
					zap.Error(cacheErr),
				)
			}
			return nil, repository.ErrLinkNotFound
		}
		return nil, err
	}

	// Просроченная ссылка удаляется и ведёт себя как несуществующая
	if link.Expired(time.Now()) {
		if _, delErr := s.linkRepo.DeleteByShortID(ctx, shortID); delErr != nil {
			s.logger.Error("Не удалось удалить просроченную ссылку",
				zap.String("short_id", shortID),
				zap.Error(delErr),
			)
		}
		if cacheErr := s.cacheRepo.Delete(ctx, shortID); cacheErr != nil {
			s.logger.Warn("Не удалось удалить просроченную ссылку из кэша",
				zap.String("short_id", shortID),
				zap.Error(cacheErr),
			)
		}
		return nil, repository.ErrLinkNotFound
	}

	// Атомарный инкремент счётчика + запись клика на стороне БД.
	// Ссылка могла исчезнуть после FindByShortID - тогда NotFound.
	click := &models.Click{
		LinkID:    link.ID,
		IPAddress: ipAddress,
		Timestamp: time.Now(),
	}
	if err := s.linkRepo.IncrementVisit(ctx, shortID, click); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, repository.ErrLinkNotFound
		}
		return nil, err
	}

	// Обновляем положительную запись кэша
	if err := s.cacheRepo.SetURL(ctx, shortID, link.OriginalURL, s.positiveTTL); err != nil {
		s.logger.Warn("Не удалось обновить кэш после резолва",
			zap.String("short_id", shortID),
			zap.Error(err),
		)
	}

	// Возвращаем снапшот до инкремента
	return link, nil
}

// UpdateLink меняет целевой URL. Разрешено только владельцу; анонимные
// ссылки (owner_id IS NULL) не может изменить никто.
func (s *linkService) UpdateLink(ctx context.Context, shortID string, ownerID string, newURL string) (*models.Link, error) {
	if err := validateURL(newURL); err != nil {
		return nil, err
	}

	link, err := s.linkRepo.FindByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}

	if !ownedBy(link, ownerID) {
		return nil, ErrUnauthorized
	}

	if err := s.linkRepo.UpdateOriginalURL(ctx, shortID, newURL); err != nil {
		return nil, err
	}
	link.OriginalURL = newURL

	// Сначала запись в БД, затем обновление кэша: гонка между ними
	// ограничена одним TTL положительной записи
	if err := s.cacheRepo.SetURL(ctx, shortID, newURL, s.positiveTTL); err != nil {
		s.logger.Warn("Не удалось обновить кэш после изменения ссылки",
			zap.String("short_id", shortID),
			zap.Error(err),
		)
	}

	return link, nil
}

// DeleteLink удаляет ссылку. Порядок важен: сначала БД, затем кэш -
// иначе параллельный резолв успел бы переналить кэш из ещё живой записи.
func (s *linkService) DeleteLink(ctx context.Context, shortID string, ownerID string) error {
	link, err := s.linkRepo.FindByShortID(ctx, shortID)
	if err != nil {
		return err
	}

	if !ownedBy(link, ownerID) {
		return ErrUnauthorized
	}

	removed, err := s.linkRepo.DeleteByShortID(ctx, shortID)
	if err != nil {
		return err
	}
	if removed == 0 {
		// Ссылку удалили параллельно
		return repository.ErrLinkNotFound
	}

	if err := s.cacheRepo.Delete(ctx, shortID); err != nil {
		s.logger.Warn("Не удалось удалить ссылку из кэша",
			zap.String("short_id", shortID),
			zap.Error(err),
		)
	}

	return nil
}

// ListOwned возвращает все ссылки владельца
func (s *linkService) ListOwned(ctx context.Context, ownerID string) ([]models.Link, error) {
	return s.linkRepo.ListByOwner(ctx, ownerID)
}

// GetStats возвращает счётчик посещений и журнал кликов. Чужие и
// анонимные ссылки неотличимы от несуществующих.
func (s *linkService) GetStats(ctx context.Context, shortID string, ownerID string) (*models.LinkStats, error) {
	link, err := s.linkRepo.FindByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}

	if !ownedBy(link, ownerID) {
		return nil, repository.ErrLinkNotFound
	}

	clicks, err := s.linkRepo.ListClicks(ctx, link.ID)
	if err != nil {
		return nil, err
	}

	return &models.LinkStats{
		ShortID:    link.ShortID,
		VisitCount: link.VisitCount,
		Clicks:     clicks,
	}, nil
}

// ownedBy проверяет право владения; nil owner_id не совпадает ни с кем
func ownedBy(link *models.Link, ownerID string) bool {
	return link.OwnerID != nil && *link.OwnerID == ownerID
}

// validateURL проверяет, что строка - абсолютный http(s) URL
func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// validateCustomCode проверяет формат кастомного кода (4-12 символов, буквы, цифры, - и _)
func validateCustomCode(code string) error {
	if len(code) < 4 || len(code) > 12 {
		return ErrInvalidCode
	}
	if !customCodePattern.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}
