package elevation

import (
	"context"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"stepgate/cmd/identity"
)

// DefaultPassphrase is the confirmation value expected when none is configured.
const DefaultPassphrase = "Foo"

// Verifier checks a submitted confirmation value.
type Verifier interface {
	Verify(ctx context.Context, u identity.User, value string) bool
	// Prompt labels the confirmation input.
	Prompt() string
	// MismatchAlert is shown when Verify fails.
	MismatchAlert() string
}

// PassphraseVerifier accepts one fixed value, compared exactly.
type PassphraseVerifier struct {
	Passphrase string
}

func (v PassphraseVerifier) Verify(_ context.Context, _ identity.User, value string) bool {
	if v.Passphrase == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(value), []byte(v.Passphrase)) == 1
}

func (v PassphraseVerifier) Prompt() string { return "Confirmation phrase" }

func (v PassphraseVerifier) MismatchAlert() string {
	return fmt.Sprintf("That wasn't '%s'", v.Passphrase)
}

// TOTPVerifier accepts a current RFC 6238 code for a deployment-wide secret.
type TOTPVerifier struct {
	secret string
	now    func() time.Time
}

// NewTOTPVerifier validates a base32 secret.
func NewTOTPVerifier(secret string, now func() time.Time) (*TOTPVerifier, error) {
	secret = strings.ToUpper(strings.TrimSpace(secret))
	if secret == "" {
		return nil, fmt.Errorf("elevation: empty totp secret")
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(secret, "=")); err != nil {
		return nil, fmt.Errorf("elevation: totp secret is not base32: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &TOTPVerifier{secret: secret, now: now}, nil
}

func (v *TOTPVerifier) Verify(_ context.Context, _ identity.User, value string) bool {
	code := strings.TrimSpace(value)
	if len(code) != 6 {
		return false
	}
	ok, err := totp.ValidateCustom(code, v.secret, v.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (v *TOTPVerifier) Prompt() string { return "One-time code" }

func (v *TOTPVerifier) MismatchAlert() string { return "That wasn't a valid one-time code" }

// LoadVerifierFromEnv selects the verifier.
//
//   - STEPGATE_ELEVATION_MODE: passphrase (default) or totp
//   - STEPGATE_ELEVATION_PASSPHRASE: expected value in passphrase mode (default "Foo")
//   - STEPGATE_ELEVATION_TOTP_SECRET: base32 secret in totp mode
func LoadVerifierFromEnv() (Verifier, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("STEPGATE_ELEVATION_MODE")))
	switch mode {
	case "", "passphrase":
		p := os.Getenv("STEPGATE_ELEVATION_PASSPHRASE")
		if strings.TrimSpace(p) == "" {
			p = DefaultPassphrase
		}
		return PassphraseVerifier{Passphrase: p}, nil
	case "totp":
		return NewTOTPVerifier(os.Getenv("STEPGATE_ELEVATION_TOTP_SECRET"), nil)
	default:
		return nil, fmt.Errorf("elevation: unknown STEPGATE_ELEVATION_MODE %q", mode)
	}
}
