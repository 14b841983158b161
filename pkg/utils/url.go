package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// HashKey creates a SHA256 hash of a string.
// This is useful for creating consistent, safe keys for Redis.
func HashKey(raw string) string {
	h := sha256.New()
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractDomain returns the lower-cased host of rawURL without a leading "www.".
// Bare hosts ("example.com/page") are accepted. It returns "" when no host can be extracted.
func ExtractDomain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + strings.TrimPrefix(s, "//")
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || strings.ContainsAny(host, " \t") {
		return ""
	}
	return host
}

// SameDomain reports whether both URLs resolve to the same non-empty domain.
func SameDomain(a, b string) bool {
	da := ExtractDomain(a)
	return da != "" && da == ExtractDomain(b)
}

// Fingerprint hashes a request so that logically identical requests share a key.
// Targets are normalized, de-duplicated and sorted; unparseable targets keep their trimmed raw form.
func Fingerprint(query string, targets []string, location string) string {
	seen := make(map[string]struct{}, len(targets))
	normalized := make([]string, 0, len(targets))
	for _, t := range targets {
		d := ExtractDomain(t)
		if d == "" {
			d = "raw:" + strings.TrimSpace(t)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		normalized = append(normalized, d)
	}
	sort.Strings(normalized)

	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(query)))
	b.WriteByte(0)
	b.WriteString(strings.Join(normalized, "\x1f"))
	b.WriteByte(0)
	b.WriteString(strings.ToLower(strings.TrimSpace(location)))
	return HashKey(b.String())
}
