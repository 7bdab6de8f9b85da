package auth

import (
	stderrors "errors"
	"strings"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// Codec signs and verifies session tokens with a single key
type Codec struct {
	method    jwt.SigningMethod
	signKey   any
	keyfunc   jwt.Keyfunc
	keyID     string
	issuer    string
	namespace string
	clock     Clock
	logger    Logger
}

// CodecOption configures a Codec
type CodecOption func(*Codec)

// WithCodecClock sets the time source used to check expiration
func WithCodecClock(clock Clock) CodecOption {
	return func(c *Codec) {
		c.clock = clock
	}
}

// WithCodecLogger sets the logger
func WithCodecLogger(logger Logger) CodecOption {
	return func(c *Codec) {
		c.logger = logger
	}
}

// NewCodec builds a Codec from the signing options in cfg
func NewCodec(cfg Config, opts ...CodecOption) (*Codec, error) {
	method := jwt.GetSigningMethod(cfg.SigningMethod)
	if method == nil {
		return nil, goerrors.New("unsupported signing method", goerrors.CategoryBadInput).
			WithTextCode(TextCodeUnsupportedAlgorithm).
			WithMetadata(map[string]any{"alg": cfg.SigningMethod})
	}

	signKey, verifyKey, err := parseKeys(cfg)
	if err != nil {
		return nil, err
	}

	keyID := cfg.KeyID
	if keyID == "" {
		keyID = DefaultKeyID
	}

	given := map[string]keyfunc.GivenKey{
		keyID: keyfunc.NewGivenCustom(verifyKey, keyfunc.GivenKeyOptions{
			Algorithm: method.Alg(),
		}),
	}

	c := &Codec{
		method:    method,
		signKey:   signKey,
		keyfunc:   keyfunc.NewGiven(given).Keyfunc,
		keyID:     keyID,
		issuer:    cfg.Issuer,
		namespace: cfg.Namespace,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.clock = normalizeClock(c.clock)
	c.logger = normalizeLogger(c.logger)

	return c, nil
}

// Namespace is the claims key holding the identity payload
func (c *Codec) Namespace() string {
	return c.namespace
}

// Encode signs claims. The caller must provide exp; iss is always set to
// the configured issuer.
func (c *Codec) Encode(claims map[string]any) (string, error) {
	exp, ok := timeClaim(claims[ClaimExpiresAt])
	if !ok {
		return "", goerrors.New("claims must include an expiration", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(TextCodeMissingExpiration)
	}

	mc := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		mc[k] = v
	}
	mc[ClaimExpiresAt] = exp.Unix()
	if iat, ok := timeClaim(claims[ClaimIssuedAt]); ok {
		mc[ClaimIssuedAt] = iat.Unix()
	}
	mc[ClaimIssuer] = c.issuer

	token := jwt.NewWithClaims(c.method, mc)
	token.Header["kid"] = c.keyID

	signed, err := token.SignedString(c.signKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Decode verifies token and returns its claims. Errors carry one of the
// token text codes: TOKEN_MALFORMED, SIGNATURE_INVALID or TOKEN_EXPIRED.
func (c *Codec) Decode(token string) (map[string]any, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed.Clone()
	}

	parsed, err := jwt.Parse(token, c.keyfunc,
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock),
	)
	if err != nil {
		mapped := c.mapError(err)
		c.logger.Debug("Codec decode rejected token: %s", err)
		return nil, mapped
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed.Clone()
	}

	return map[string]any(claims), nil
}

// EncodeClaims signs typed claims under the configured namespace
func (c *Codec) EncodeClaims(claims *Claims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}
	return c.Encode(claims.Map(c.namespace))
}

// DecodeClaims verifies token and parses its payload
func (c *Codec) DecodeClaims(token string) (*Claims, error) {
	raw, err := c.Decode(token)
	if err != nil {
		return nil, err
	}
	return ParseClaims(raw, c.namespace)
}

// ValidPayload checks raw carries a session token under the namespace
func (c *Codec) ValidPayload(raw map[string]any) bool {
	return ValidPayload(raw, c.namespace)
}

func (c *Codec) mapError(err error) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return wrapAs(ErrTokenMalformed, err)
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid),
		stderrors.Is(err, jwt.ErrTokenUnverifiable),
		stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
		return wrapAs(ErrSignatureInvalid, err)
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return wrapAs(ErrTokenExpired, err)
	default:
		return wrapAs(ErrTokenMalformed, err)
	}
}

func parseKeys(cfg Config) (sign any, verify any, err error) {
	switch {
	case strings.HasPrefix(cfg.SigningMethod, "HS"):
		if cfg.SigningKey == "" {
			return nil, nil, keyError(cfg, stderrors.New("signing key is empty"))
		}
		key := []byte(cfg.SigningKey)
		return key, key, nil
	case strings.HasPrefix(cfg.SigningMethod, "RS"):
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
		if err != nil {
			return nil, nil, keyError(cfg, err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, nil, keyError(cfg, err)
		}
		return priv, pub, nil
	case strings.HasPrefix(cfg.SigningMethod, "ES"):
		priv, err := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
		if err != nil {
			return nil, nil, keyError(cfg, err)
		}
		pub, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, nil, keyError(cfg, err)
		}
		return priv, pub, nil
	case cfg.SigningMethod == "EdDSA":
		priv, err := jwt.ParseEdPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
		if err != nil {
			return nil, nil, keyError(cfg, err)
		}
		pub, err := jwt.ParseEdPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, nil, keyError(cfg, err)
		}
		return priv, pub, nil
	}
	return nil, nil, goerrors.New("unsupported signing method", goerrors.CategoryBadInput).
		WithTextCode(TextCodeUnsupportedAlgorithm).
		WithMetadata(map[string]any{"alg": cfg.SigningMethod})
}

func keyError(cfg Config, err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid signing key").
		WithMetadata(map[string]any{"alg": cfg.SigningMethod})
}
