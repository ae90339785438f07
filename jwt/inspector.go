package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the algorithm used to verify tokens when a key is configured.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

const maxLeeway = 10 * time.Minute

// ErrOpaqueToken is returned when a token is not a three-segment JWT.
var ErrOpaqueToken = errors.New("token is not a jwt")

// Config configures an Inspector. A zero Config reads claims unverified.
type Config struct {
	// Leeway is tolerated clock skew when checking exp.
	Leeway time.Duration

	// SigningMethod and VerifyKey enable signature verification. VerifyKey is the raw
	// HS256 secret, or an Ed25519 public key as raw bytes or PEM.
	SigningMethod SigningMethod
	VerifyKey     []byte
}

// Claims are the registered claims found in a token.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Verified  bool
}

// HasExpiry reports whether the token carried an exp claim.
func (c *Claims) HasExpiry() bool {
	return c != nil && !c.ExpiresAt.IsZero()
}

// Inspector reads token claims. It is immutable after construction and safe for
// concurrent use.
type Inspector struct {
	config    Config
	verifyKey interface{}
	now       func() time.Time
}

// NewInspector validates cfg and returns an Inspector.
func NewInspector(cfg Config) (*Inspector, error) {
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}

	i := &Inspector{config: cfg, now: time.Now}
	if len(cfg.VerifyKey) == 0 {
		return i, nil
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		i.verifyKey = append([]byte(nil), cfg.VerifyKey...)
	case MethodEd25519:
		key, err := parseEdPublicKey(cfg.VerifyKey)
		if err != nil {
			return nil, err
		}
		i.verifyKey = key
	default:
		return nil, errors.New("unsupported signing method")
	}
	return i, nil
}

// Inspect returns the token's registered claims. When a verification key is configured
// the signature and expiry are checked; otherwise the claims are read as-is.
func (i *Inspector) Inspect(token string) (*Claims, error) {
	if strings.Count(token, ".") != 2 {
		return nil, ErrOpaqueToken
	}

	registered := &jwt.RegisteredClaims{}
	verified := false

	if i.verifyKey != nil {
		options := []jwt.ParserOption{jwt.WithValidMethods([]string{i.method().Alg()})}
		if i.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(i.config.Leeway))
		}
		parsed, err := jwt.NewParser(options...).ParseWithClaims(token, registered, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != i.method().Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return i.verifyKey, nil
		})
		if err != nil {
			return nil, err
		}
		if !parsed.Valid {
			return nil, jwt.ErrTokenInvalidClaims
		}
		verified = true
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(token, registered); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOpaqueToken, err)
		}
	}

	out := &Claims{
		Subject:  registered.Subject,
		Issuer:   registered.Issuer,
		Verified: verified,
	}
	if registered.ExpiresAt != nil {
		out.ExpiresAt = registered.ExpiresAt.Time
	}
	if registered.IssuedAt != nil {
		out.IssuedAt = registered.IssuedAt.Time
	}
	return out, nil
}

// Expired reports whether token is a JWT whose exp, plus leeway, has passed. Opaque
// tokens and tokens without exp are never expired. A token failing verification counts
// as expired.
func (i *Inspector) Expired(token string) bool {
	claims, err := i.Inspect(token)
	if err != nil {
		return !errors.Is(err, ErrOpaqueToken)
	}
	if !claims.HasExpiry() {
		return false
	}
	return i.now().After(claims.ExpiresAt.Add(i.config.Leeway))
}

func (i *Inspector) method() jwt.SigningMethod {
	if i.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
