package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ilaydakx/pos-system/internal/domain"
)

// UnlockManager verifies the operator PIN and issues short-lived unlock
// tokens. The token only proves who unlocked; staying unlocked is the
// session guard's business.
type UnlockManager struct {
	secret   []byte
	tokenTTL time.Duration
	pinHash  string
}

type unlockClaims struct {
	jwtlib.RegisteredClaims
}

func NewUnlockManager(secret string, tokenTTL time.Duration, pin string) *UnlockManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	pin = strings.TrimSpace(pin)
	if pin == "" {
		pin = "disabled"
	}
	hash, err := hashPIN(pin)
	if err != nil {
		hash = ""
	}
	return &UnlockManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		pinHash:  hash,
	}
}

func (m *UnlockManager) Unlock(req domain.UnlockRequest) (domain.UnlockResponse, error) {
	pin := strings.TrimSpace(req.PIN)
	if pin == "" || m.pinHash == "" {
		return domain.UnlockResponse{}, errors.New("invalid pin")
	}
	if bcrypt.CompareHashAndPassword([]byte(m.pinHash), []byte(pin)) != nil {
		return domain.UnlockResponse{}, errors.New("invalid pin")
	}

	expiresAt := time.Now().UTC().Add(m.tokenTTL)
	token, err := m.sign(expiresAt)
	if err != nil {
		return domain.UnlockResponse{}, err
	}
	return domain.UnlockResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (m *UnlockManager) ParseToken(tokenStr string) error {
	claims := &unlockClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return errors.New("invalid or expired token")
	}
	return nil
}

func (m *UnlockManager) sign(expiresAt time.Time) (string, error) {
	claims := unlockClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "terminal",
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "pos-terminal",
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func hashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
