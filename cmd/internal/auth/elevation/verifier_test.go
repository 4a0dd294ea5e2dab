package elevation

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"stepgate/cmd/identity"
)

func TestPassphraseVerifier(t *testing.T) {
	t.Parallel()

	v := PassphraseVerifier{Passphrase: DefaultPassphrase}
	cases := []struct {
		in   string
		want bool
	}{
		{"Foo", true},
		{"foo", false},
		{"Foo ", false},
		{" Foo", false},
		{"Bar", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := v.Verify(context.Background(), identity.User{}, tc.in); got != tc.want {
			t.Fatalf("Verify(%q)=%v want %v", tc.in, got, tc.want)
		}
	}

	if got, want := v.MismatchAlert(), "That wasn't 'Foo'"; got != want {
		t.Fatalf("MismatchAlert=%q want %q", got, want)
	}
}

func TestPassphraseVerifierEmptyNeverMatches(t *testing.T) {
	t.Parallel()

	v := PassphraseVerifier{}
	if v.Verify(context.Background(), identity.User{}, "") {
		t.Fatalf("empty passphrase matched empty input")
	}
}

func TestTOTPVerifier(t *testing.T) {
	t.Parallel()

	const secret = "JBSWY3DPEHPK3PXP"
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	v, err := NewTOTPVerifier(secret, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewTOTPVerifier: %v", err)
	}

	code, err := totp.GenerateCode(secret, now)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !v.Verify(context.Background(), identity.User{}, code) {
		t.Fatalf("current code rejected")
	}

	stale, err := totp.GenerateCode(secret, now.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if stale != code && v.Verify(context.Background(), identity.User{}, stale) {
		t.Fatalf("stale code accepted")
	}

	for _, bad := range []string{"", "12345", "abcdef", "1234567"} {
		if v.Verify(context.Background(), identity.User{}, bad) {
			t.Fatalf("Verify(%q) accepted", bad)
		}
	}
}

func TestNewTOTPVerifierRejectsBadSecret(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "   ", "not base32!"} {
		if _, err := NewTOTPVerifier(s, nil); err == nil {
			t.Fatalf("NewTOTPVerifier(%q): expected error", s)
		}
	}
}

func TestLoadVerifierFromEnv(t *testing.T) {
	t.Run("default passphrase", func(t *testing.T) {
		t.Setenv("STEPGATE_ELEVATION_MODE", "")
		t.Setenv("STEPGATE_ELEVATION_PASSPHRASE", "")
		v, err := LoadVerifierFromEnv()
		if err != nil {
			t.Fatalf("LoadVerifierFromEnv: %v", err)
		}
		pv, ok := v.(PassphraseVerifier)
		if !ok || pv.Passphrase != DefaultPassphrase {
			t.Fatalf("got %#v want passphrase %q", v, DefaultPassphrase)
		}
	})

	t.Run("custom passphrase", func(t *testing.T) {
		t.Setenv("STEPGATE_ELEVATION_MODE", "passphrase")
		t.Setenv("STEPGATE_ELEVATION_PASSPHRASE", "open sesame")
		v, err := LoadVerifierFromEnv()
		if err != nil {
			t.Fatalf("LoadVerifierFromEnv: %v", err)
		}
		if !v.Verify(context.Background(), identity.User{}, "open sesame") {
			t.Fatalf("configured passphrase rejected")
		}
	})

	t.Run("totp", func(t *testing.T) {
		t.Setenv("STEPGATE_ELEVATION_MODE", "TOTP")
		t.Setenv("STEPGATE_ELEVATION_TOTP_SECRET", "jbswy3dpehpk3pxp")
		v, err := LoadVerifierFromEnv()
		if err != nil {
			t.Fatalf("LoadVerifierFromEnv: %v", err)
		}
		if _, ok := v.(*TOTPVerifier); !ok {
			t.Fatalf("got %T want *TOTPVerifier", v)
		}
	})

	t.Run("totp without secret", func(t *testing.T) {
		t.Setenv("STEPGATE_ELEVATION_MODE", "totp")
		t.Setenv("STEPGATE_ELEVATION_TOTP_SECRET", "")
		if _, err := LoadVerifierFromEnv(); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Setenv("STEPGATE_ELEVATION_MODE", "sms")
		if _, err := LoadVerifierFromEnv(); err == nil {
			t.Fatalf("expected error")
		}
	})
}
