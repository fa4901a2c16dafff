package posture

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrMissingCookieKey = errors.New("cookie key missing")

// Cookie keys that must be present for a report to be built.
var requiredCookieKeys = []string{"user", "domain", "computer"}

// Fields carries the values openconnect supplies that PanGpHip cannot know
// about. An empty IPv6 means the client has no IPv6 address.
type Fields struct {
	User     string
	Domain   string
	Computer string
	IPv4     string
	IPv6     string
	MD5      string
	ClientOS string
}

// CollectFields decodes the query-encoded cookie and combines it with the
// remaining command line values.
func CollectFields(cookie, clientIP, md5, clientOS string) (*Fields, error) {
	values, err := ParseCookie(cookie)
	if err != nil {
		return nil, err
	}

	ip4, ip6 := SplitIPs(clientIP)
	return &Fields{
		User:     values["user"],
		Domain:   values["domain"],
		Computer: values["computer"],
		IPv4:     ip4,
		IPv6:     ip6,
		MD5:      md5,
		ClientOS: clientOS,
	}, nil
}

// ParseCookie returns the first non-empty value of every key in the cookie
// and fails if any of user, domain or computer is absent.
func ParseCookie(cookie string) (map[string]string, error) {
	// Malformed pairs are dropped by ParseQuery; a dropped required key is
	// reported below.
	query, _ := url.ParseQuery(cookie)

	values := make(map[string]string, len(query))
	for key, vals := range query {
		for _, v := range vals {
			if v != "" {
				values[key] = v
				break
			}
		}
	}

	for _, key := range requiredCookieKeys {
		if _, ok := values[key]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingCookieKey, key)
		}
	}
	return values, nil
}

// SplitIPs splits "ipv4[,ipv6[,...]]" into its first two addresses.
func SplitIPs(clientIP string) (ip4, ip6 string) {
	parts := strings.SplitN(clientIP, ",", 3)
	ip4 = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		ip6 = strings.TrimSpace(parts[1])
	}
	return ip4, ip6
}

func (f *Fields) HasIPv6() bool {
	return f.IPv6 != ""
}
