package types

import (
	"net/url"
	"sort"
	"strings"
)

// Args optional declare arguments
type Args map[string]string

// String renders args as "k1=v1&k2=v2&" with keys sorted
// Keys and values are query-escaped so '&' and '=' survive ParseArgs
func (a Args) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(a[k]))
		b.WriteByte('&')
	}

	return b.String()
}

// Copy ...
func (a Args) Copy() Args {
	res := make(Args, len(a))
	for k, v := range a {
		res[k] = v
	}

	return res
}

// ParseArgs reverses Args.String
// Malformed pairs without '=' are skipped
func ParseArgs(s string) Args {
	res := make(Args)

	for _, pair := range strings.Split(s, "&") {
		if pair == "" {
			continue
		}

		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}

		res[unescape(kv[0])] = unescape(kv[1])
	}

	return res
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}

	return s
}
