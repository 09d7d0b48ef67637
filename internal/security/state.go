package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

func NewRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SignState binds an OAuth state value to key so the callback can prove the
// browser that started the flow is the one finishing it.
func SignState(state, key string) string {
	return state + "." + stateMAC(state, key)
}

func VerifySignedState(signed, key string) (string, bool) {
	state, mac, ok := strings.Cut(signed, ".")
	if !ok || state == "" || key == "" {
		return "", false
	}
	if !hmac.Equal([]byte(mac), []byte(stateMAC(state, key))) {
		return "", false
	}
	return state, true
}

func GetCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func stateMAC(state, key string) string {
	m := hmac.New(sha256.New, []byte(key))
	m.Write([]byte(state))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
