package sharetoken

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidScope = errors.New("invalid scope type")
	ErrMalformed    = errors.New("malformed token")
)

type ScopeType string

const (
	ScopeRecord     ScopeType = "record"
	ScopeAllRecords ScopeType = "all_records"
)

func ParseScopeType(s string) (ScopeType, bool) {
	switch ScopeType(s) {
	case ScopeRecord:
		return ScopeRecord, true
	case ScopeAllRecords:
		return ScopeAllRecords, true
	default:
		return "", false
	}
}

// Claims es la tupla que viaja dentro del token: alcance + expiración + nonce.
// Autocontenido a propósito: la redención vía QR no debería necesitar un
// lookup para saber qué alcance tiene el token ni cuándo vence.
type Claims struct {
	ID        string // jti; clave del contador de accesos en el store
	ScopeType ScopeType
	ScopeID   string
	Nonce     string
	ExpiresAt time.Time
}

// wireClaims es el layout firmado. La expiración va duplicada en millis (exm)
// porque el exp estándar de JWT trunca a segundos.
type wireClaims struct {
	ScopeType string `json:"sct"`
	ScopeID   string `json:"sci"`
	Nonce     string `json:"nce"`
	ExpiresMS int64  `json:"exm"`
	jwt.RegisteredClaims
}

// Codec firma y parsea share tokens (HS256).
// Nunca se acepta un token construido por el cliente: sin la clave del
// servidor la firma no sale, por más que el payload se vea razonable.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret []byte) *Codec {
	return &Codec{
		secret: secret,
		now:    time.Now,
	}
}

// Encode construye un token URL-safe con nonce criptográfico de 16 bytes.
// Falla solo con scope inválido o input vacío.
func (c *Codec) Encode(scopeType ScopeType, scopeID string, duration time.Duration) (string, Claims, error) {
	if _, ok := ParseScopeType(string(scopeType)); !ok {
		return "", Claims{}, ErrInvalidScope
	}
	scopeID = strings.TrimSpace(scopeID)
	if scopeID == "" {
		return "", Claims{}, ErrInvalidScope
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", Claims{}, err
	}

	now := c.now()
	claims := Claims{
		ID:        uuid.NewString(),
		ScopeType: scopeType,
		ScopeID:   scopeID,
		Nonce:     hex.EncodeToString(nonce),
		ExpiresAt: now.Add(duration),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, wireClaims{
		ScopeType: string(claims.ScopeType),
		ScopeID:   claims.ScopeID,
		Nonce:     claims.Nonce,
		ExpiresMS: claims.ExpiresAt.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})

	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Decode valida firma y forma, no expiración: distinguir "token inválido"
// de "token vencido" es responsabilidad del caller (redeem).
func (c *Codec) Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMalformed
	}

	var wire wireClaims
	_, err := jwt.ParseWithClaims(
		token,
		&wire,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, ErrMalformed
	}

	scope, ok := ParseScopeType(wire.ScopeType)
	if !ok {
		return Claims{}, ErrMalformed
	}
	if wire.ScopeID == "" || wire.Nonce == "" || wire.ID == "" || wire.ExpiresMS <= 0 {
		return Claims{}, ErrMalformed
	}

	return Claims{
		ID:        wire.ID,
		ScopeType: scope,
		ScopeID:   wire.ScopeID,
		Nonce:     wire.Nonce,
		ExpiresAt: time.UnixMilli(wire.ExpiresMS),
	}, nil
}
