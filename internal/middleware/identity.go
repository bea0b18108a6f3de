package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Ключ контекста gin, под которым лежит идентификатор владельца
const OwnerIDKey = "owner_id"

// IdentityConfig конфигурация для извлечения идентичности владельца.
// Сама аутентификация выполняется внешним identity-сервисом перед нами;
// сюда приходит уже проверенный идентификатор в заголовке.
type IdentityConfig struct {
	// HeaderName имя заголовка с идентификатором владельца (по умолчанию: X-Owner-ID)
	HeaderName string
	// Optional если true, запросы без идентификатора проходят как анонимные
	Optional bool
}

// DefaultIdentityConfig конфигурация по умолчанию
var DefaultIdentityConfig = IdentityConfig{
	HeaderName: "X-Owner-ID",
	Optional:   false,
}

// Identity middleware для извлечения владельца из запроса
type Identity struct {
	config IdentityConfig
}

// NewIdentity создаёт новый identity middleware
func NewIdentity(config IdentityConfig) *Identity {
	if config.HeaderName == "" {
		config.HeaderName = DefaultIdentityConfig.HeaderName
	}
	return &Identity{config: config}
}

// Middleware возвращает Gin middleware handler
func (id *Identity) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := strings.TrimSpace(c.GetHeader(id.config.HeaderName))

		if ownerID == "" {
			if id.config.Optional {
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_owner_id",
				"message": "Требуется идентификатор владельца в заголовке " + id.config.HeaderName,
			})
			c.Abort()
			return
		}

		// Identity-сервис выдаёт владельцам UUID; всё остальное - мусор
		if _, err := uuid.Parse(ownerID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_owner_id",
				"message": "Идентификатор владельца должен быть UUID",
			})
			c.Abort()
			return
		}

		c.Set(OwnerIDKey, ownerID)
		c.Next()
	}
}

// OwnerID достаёт идентификатор владельца из контекста запроса
func OwnerID(c *gin.Context) (string, bool) {
	value, exists := c.Get(OwnerIDKey)
	if !exists {
		return "", false
	}
	ownerID, ok := value.(string)
	return ownerID, ok && ownerID != ""
}
