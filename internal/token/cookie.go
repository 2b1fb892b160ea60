package token

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CookieFile persists the credential cookie as a single Set-Cookie line.
type CookieFile struct {
	path string
	now  func() time.Time
}

// NewCookieFile returns a CookieFile backed by path.
func NewCookieFile(path string) *CookieFile {
	return &CookieFile{path: path, now: time.Now}
}

// Line renders the Set-Cookie value for a credential. A zero expiresAt
// produces a session cookie.
func Line(token string, expiresAt int64) string {
	c := &http.Cookie{
		Name:     StorageKey,
		Value:    escapeValue(token),
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	if expiresAt > 0 {
		c.Expires = time.Unix(expiresAt, 0).UTC()
	}
	return c.String()
}

// ClearLine renders the Set-Cookie value that expires the credential cookie.
func ClearLine() string {
	c := &http.Cookie{
		Name:     StorageKey,
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	}
	return c.String()
}

// escapeValue percent-encodes v, with spaces as %20.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// Read returns the unescaped cookie value, or "" when the file is missing,
// the cookie was cleared, or it has expired.
func (f *CookieFile) Read() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read cookie file: %w", err)
	}

	line := strings.TrimSpace(string(data))
	if line == "" {
		return "", nil
	}

	c, err := http.ParseSetCookie(line)
	if err != nil {
		return "", fmt.Errorf("parse cookie: %w", err)
	}
	if c.Name != StorageKey || c.MaxAge < 0 {
		return "", nil
	}
	if !c.Expires.IsZero() && !c.Expires.After(f.now()) {
		return "", nil
	}

	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", fmt.Errorf("unescape cookie value: %w", err)
	}
	return value, nil
}

// Write stores the credential cookie.
func (f *CookieFile) Write(token string, expiresAt int64) error {
	return f.replace(Line(token, expiresAt))
}

// Expire overwrites the cookie with a Max-Age=0 line.
func (f *CookieFile) Expire() error {
	return f.replace(ClearLine())
}

// replace swaps the whole file so concurrent readers see either line.
func (f *CookieFile) replace(line string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create cookie directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*")
	if err != nil {
		return fmt.Errorf("create temp cookie file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(line + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cookie file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}
