package session

import (
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

const cookieAudience = "stepgate.web_session"

// CookieTokenManager wraps an opaque session token in a signed cookie value.
type CookieTokenManager interface {
	Issue(sessionToken string, now, exp time.Time) (string, error)
	Verify(cookie string, now time.Time) (sessionToken string, err error)
}

type pasetoV4CookieManager struct {
	issuer    string
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4CookieManager builds a CookieTokenManager based on PASETO v4.public.
func NewPasetoV4CookieManager(cfg Config) (CookieTokenManager, error) {
	if strings.TrimSpace(cfg.SigningKeyHex) == "" {
		return nil, ErrConfig
	}
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.SigningKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &pasetoV4CookieManager{
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// GenerateSigningKeyHex returns a fresh Ed25519 secret key for dev mode.
// Sessions signed with it do not survive a restart.
func GenerateSigningKeyHex() string {
	return paseto.NewV4AsymmetricSecretKey().ExportHex()
}

func (m *pasetoV4CookieManager) Issue(sessionToken string, now, exp time.Time) (string, error) {
	if sessionToken == "" || !exp.After(now) {
		return "", ErrInvalidToken
	}

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetAudience(cookieAudience)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetString("tok", sessionToken)

	return tok.V4Sign(m.secret, nil), nil
}

func (m *pasetoV4CookieManager) Verify(cookie string, now time.Time) (string, error) {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" || len(cookie) > 4096 {
		return "", ErrInvalidToken
	}

	// Validating slightly in the future tolerates nbf/iat skew and makes exp stricter.
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.ForAudience(cookieAudience))
	p.AddRule(paseto.ValidAt(now.Add(m.clockSkew)))

	parsed, err := p.ParseV4Public(m.public, cookie, nil)
	if err != nil {
		return "", ErrInvalidToken
	}

	tok, err := parsed.GetString("tok")
	if err != nil || tok == "" {
		return "", ErrInvalidToken
	}
	return tok, nil
}
