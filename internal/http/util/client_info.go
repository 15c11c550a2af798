package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/sifan077/LinkPulse/internal/app/model"
)

// HashIP returns the hex HMAC-SHA256 of ip keyed by salt. Raw addresses are
// never stored.
func HashIP(salt, ip string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// browserRules are checked in order; several browsers embed the tokens of
// the ones they are built on, so the more specific token comes first.
var browserRules = []struct {
	name   string
	tokens []string
}{
	{"bot", []string{"bot", "spider", "crawler", "slurp"}},
	{"curl", []string{"curl/"}},
	{"Edge", []string{"edg/", "edge/", "edga/", "edgios/"}},
	{"Opera", []string{"opr/", "opera"}},
	{"Firefox", []string{"firefox/", "fxios/"}},
	{"Chrome", []string{"chrome/", "crios/", "chromium/"}},
	{"Safari", []string{"safari/"}},
	{"IE", []string{"msie ", "trident/"}},
}

// ParseBrowser maps a User-Agent header onto a coarse browser family.
func ParseBrowser(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return model.UnknownBrowser
	}
	for _, rule := range browserRules {
		for _, token := range rule.tokens {
			if strings.Contains(ua, token) {
				return rule.name
			}
		}
	}
	return model.UnknownBrowser
}

// ReferrerOrigin reduces a Referer header to scheme://host. Anything that is
// not an absolute http(s) URL counts as a direct visit.
func ReferrerOrigin(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return model.DirectReferrer
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return model.DirectReferrer
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return model.DirectReferrer
	}
	return scheme + "://" + strings.ToLower(u.Host)
}
