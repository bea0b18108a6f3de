package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link
	clicks map[int64][]models.Click
	nextID int64

	// ForcedErr, when set, is returned by every method to simulate a
	// record store outage.
	ForcedErr error
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		clicks: make(map[int64][]models.Click),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Insert(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return m.ForcedErr
	}
	if _, exists := m.links[link.ShortID]; exists {
		return repository.ErrShortIDTaken
	}

	link.ID = m.nextID
	m.nextID++
	stored := *link
	m.links[link.ShortID] = &stored
	return nil
}

func (m *MockLinkRepository) FindByShortID(ctx context.Context, shortID string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}
	link, exists := m.links[shortID]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	snapshot := *link
	return &snapshot, nil
}

func (m *MockLinkRepository) DeleteByShortID(ctx context.Context, shortID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return 0, m.ForcedErr
	}
	link, exists := m.links[shortID]
	if !exists {
		return 0, nil
	}
	delete(m.links, shortID)
	delete(m.clicks, link.ID)
	return 1, nil
}

func (m *MockLinkRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return 0, m.ForcedErr
	}
	var removed int64
	for shortID, link := range m.links {
		if link.ExpiresAt != nil && !link.ExpiresAt.After(cutoff) {
			delete(m.links, shortID)
			delete(m.clicks, link.ID)
			removed++
		}
	}
	return removed, nil
}

// IncrementVisit mirrors the store-level atomicity: counter and click log
// change together under one lock.
func (m *MockLinkRepository) IncrementVisit(ctx context.Context, shortID string, click *models.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return m.ForcedErr
	}
	link, exists := m.links[shortID]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.VisitCount++
	m.clicks[link.ID] = append(m.clicks[link.ID], *click)
	return nil
}

func (m *MockLinkRepository) UpdateOriginalURL(ctx context.Context, shortID string, newURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return m.ForcedErr
	}
	link, exists := m.links[shortID]
	if !exists {
		return repository.ErrLinkNotFound
	}
	link.OriginalURL = newURL
	return nil
}

func (m *MockLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}
	var links []models.Link
	for _, link := range m.links {
		if link.OwnerID != nil && *link.OwnerID == ownerID {
			links = append(links, *link)
		}
	}
	return links, nil
}

func (m *MockLinkRepository) ListClicks(ctx context.Context, linkID int64) ([]models.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ForcedErr != nil {
		return nil, m.ForcedErr
	}
	return append([]models.Click(nil), m.clicks[linkID]...), nil
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
	m.clicks = make(map[int64][]models.Click)
	m.nextID = 1
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	// ForcedErr, when set, is returned by every method to simulate a
	// cache outage.
	ForcedErr error
}

type cacheEntry struct {
	url      string
	negative bool
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		entries: make(map[string]cacheEntry),
	}
}

func (m *MockCacheRepository) GetURL(ctx context.Context, shortID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ForcedErr != nil {
		return "", m.ForcedErr
	}
	entry, exists := m.entries[shortID]
	if !exists {
		return "", repository.ErrCacheMiss
	}
	if entry.negative {
		return "", repository.ErrNegativeCached
	}
	return entry.url, nil
}

func (m *MockCacheRepository) SetURL(ctx context.Context, shortID string, url string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return m.ForcedErr
	}
	m.entries[shortID] = cacheEntry{url: url}
	return nil
}

func (m *MockCacheRepository) SetNotFound(ctx context.Context, shortID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return m.ForcedErr
	}
	m.entries[shortID] = cacheEntry{negative: true}
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, shortID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ForcedErr != nil {
		return m.ForcedErr
	}
	delete(m.entries, shortID)
	return nil
}

// HasNegative reports whether a negative entry is cached for the id.
func (m *MockCacheRepository) HasNegative(shortID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, exists := m.entries[shortID]
	return exists && entry.negative
}

// HasPositive reports whether a positive entry is cached for the id.
func (m *MockCacheRepository) HasPositive(shortID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, exists := m.entries[shortID]
	return exists && !entry.negative
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]cacheEntry)
}
