package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	"example.com/stackapp/backend/internal/config"
)

const HeaderAPIKey = "X-API-Key"

var ErrInvalidAPIKey = errors.New("invalid or missing api key")

// Verifier проверяет общий API-ключ. Ключ хранится только в виде хэша.
type Verifier struct {
	plainHash  string
	bcryptHash string

	mu       sync.RWMutex
	verified string
}

// NewVerifier создает проверку по конфигурации. Если задан bcrypt-хэш,
// открытый ключ не используется.
func NewVerifier(cfg config.SecurityConfig) *Verifier {
	v := &Verifier{bcryptHash: cfg.APIKeyBcrypt}
	if v.bcryptHash == "" && cfg.APIKey != "" {
		v.plainHash = keyDigest(cfg.APIKey)
	}
	return v
}

// Enabled сообщает, задан ли ключ вообще.
func (v *Verifier) Enabled() bool {
	return v.plainHash != "" || v.bcryptHash != ""
}

// Verify возвращает ErrInvalidAPIKey, если ключ не совпал.
func (v *Verifier) Verify(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrInvalidAPIKey
	}

	if v.plainHash != "" {
		if digestMatches(v.plainHash, key) {
			return nil
		}
		return ErrInvalidAPIKey
	}

	// bcrypt дорогой, поэтому после первого успеха сверяем SHA-256.
	v.mu.RLock()
	verified := v.verified
	v.mu.RUnlock()
	if verified != "" {
		if digestMatches(verified, key) {
			return nil
		}
		return ErrInvalidAPIKey
	}

	if err := CompareAPIKey(v.bcryptHash, key); err != nil {
		return ErrInvalidAPIKey
	}

	v.mu.Lock()
	v.verified = keyDigest(key)
	v.mu.Unlock()
	return nil
}

// keyDigest возвращает SHA-256 ключа в hex.
func keyDigest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func digestMatches(digest, key string) bool {
	return subtle.ConstantTimeCompare([]byte(digest), []byte(keyDigest(key))) == 1
}

// APIKeyMiddleware требует заголовок X-API-Key на всех маршрутах, кроме
// служебных. Ответ при отказе не раскрывает причину.
func APIKeyMiddleware(verifier *Verifier, publicPaths ...string) echo.MiddlewareFunc {
	public := make(map[string]struct{}, len(publicPaths))
	for _, path := range publicPaths {
		public[path] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !verifier.Enabled() {
				return next(c)
			}
			if _, ok := public[c.Request().URL.Path]; ok {
				return next(c)
			}

			if err := verifier.Verify(c.Request().Header.Get(HeaderAPIKey)); err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": ErrInvalidAPIKey.Error()})
			}

			return next(c)
		}
	}
}
