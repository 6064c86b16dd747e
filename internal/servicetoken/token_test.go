package servicetoken

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestSignerVerifierRoundTrip(t *testing.T) {
	privatePath, publicPath := writeKeyPair(t, "svc")
	signer, err := NewSigner(SignerOptions{
		PrivateKeyPath: privatePath,
		Issuer:         "orionctl",
		TTL:            2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier := newVerifier(t, publicPath)
	token, err := signer.Sign(DesktopAudience, ScopeAppsWrite)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Issuer != "orionctl" || !claims.HasScope(ScopeAppsWrite) {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSignerRequiresPrivateKey(t *testing.T) {
	if _, err := NewSigner(SignerOptions{Issuer: "orionctl"}); err == nil {
		t.Fatalf("expected missing key path to fail")
	}
}

func TestVerifierRejectsWrongAudience(t *testing.T) {
	privatePath, publicPath := writeKeyPair(t, "aud")
	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privatePath, Issuer: "orionctl"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token, err := signer.Sign("billing")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newVerifier(t, publicPath).Verify(token); err == nil {
		t.Fatalf("expected wrong audience to fail")
	}
}

func TestVerifierRejectsUnknownIssuer(t *testing.T) {
	privatePath, publicPath := writeKeyPair(t, "iss")
	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privatePath, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token, _ := signer.Sign(DesktopAudience)
	if _, err := newVerifier(t, publicPath).Verify(token); err == nil {
		t.Fatalf("expected unknown issuer to fail")
	}
}

func TestVerifierRejectsUnknownKid(t *testing.T) {
	privatePath, publicPath := writeKeyPair(t, "kid")
	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privatePath, Issuer: "orionctl", KeyID: "rotated"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token, _ := signer.Sign(DesktopAudience)
	if _, err := newVerifier(t, publicPath).Verify(token); err == nil {
		t.Fatalf("expected unknown kid to fail")
	}
}

func TestVerifierRejectsExpiredToken(t *testing.T) {
	privatePath, publicPath := writeKeyPair(t, "exp")
	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privatePath, Issuer: "orionctl", TTL: time.Minute})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	signer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _ := signer.Sign(DesktopAudience)
	if _, err := newVerifier(t, publicPath).Verify(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestVerifierRejectsHS256(t *testing.T) {
	_, publicPath := writeKeyPair(t, "alg")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "orionctl",
		Audience:  jwt.ClaimStrings{DesktopAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		ID:        "x",
	}})
	token.Header["kid"] = DefaultKeyID
	signed, err := token.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newVerifier(t, publicPath).Verify(signed); err == nil {
		t.Fatalf("expected hs256 token to fail")
	}
}

func TestAuthorizeChecksScope(t *testing.T) {
	privatePath, publicPath := writeKeyPair(t, "scope")
	signer, err := NewSigner(SignerOptions{PrivateKeyPath: privatePath, Issuer: "orionctl"})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	verifier := newVerifier(t, publicPath)

	req := httptest.NewRequest("POST", "/internal/apps", nil)
	if _, err := verifier.Authorize(req, ScopeAppsWrite); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}

	token, _ := signer.Sign(DesktopAudience)
	req.Header.Set("Authorization", "Bearer "+token)
	if _, err := verifier.Authorize(req, ScopeAppsWrite); !errors.Is(err, ErrScope) {
		t.Fatalf("expected scope error, got %v", err)
	}

	token, _ = signer.Sign(DesktopAudience, ScopeAppsWrite)
	req.Header.Set("Authorization", "bearer "+token)
	if _, err := verifier.Authorize(req, ScopeAppsWrite); err != nil {
		t.Fatalf("authorize: %v", err)
	}
}

func TestParsePublicKeys(t *testing.T) {
	parsed, err := ParsePublicKeys("k1=/a.pem, k2=/b.pem")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(parsed) != 2 || parsed["k2"] != "/b.pem" {
		t.Fatalf("unexpected parsed map: %v", parsed)
	}
	if _, err := ParsePublicKeys("broken"); err == nil {
		t.Fatalf("expected malformed entry to fail")
	}
}

func writeKeyPair(t *testing.T, prefix string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	privatePath := filepath.Join(dir, prefix+"-private.pem")
	publicPath := filepath.Join(dir, prefix+"-public.pem")
	if err := WriteKeyPair(privatePath, publicPath, 2048); err != nil {
		t.Fatalf("write key pair: %v", err)
	}
	return privatePath, publicPath
}

func newVerifier(t *testing.T, publicPath string) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierOptions{
		PublicKeys:     map[string]string{DefaultKeyID: publicPath},
		Audience:       DesktopAudience,
		AllowedIssuers: []string{"orionctl"},
		Leeway:         time.Second,
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}
