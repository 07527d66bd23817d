package http

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims UserClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func userClaims(sub string, exp time.Time) UserClaims {
	return UserClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
}

func TestParseUserToken(t *testing.T) {
	future := time.Now().Add(time.Hour)

	sub, err := ParseUserToken(signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userClaims("u1", future)), testSecret)
	if err != nil || sub != "u1" {
		t.Fatalf("valid token: %q %v", sub, err)
	}

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), userClaims("u1", future)),
		"expired":      signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userClaims("u1", time.Now().Add(-time.Hour))),
		"no subject":   signToken(t, jwt.SigningMethodHS256, []byte(testSecret), userClaims("", future)),
		"garbage":      "not.a.token",
	}
	for name, raw := range cases {
		if _, err := ParseUserToken(raw, testSecret); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}
