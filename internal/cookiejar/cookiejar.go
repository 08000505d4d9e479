// Package cookiejar parses raw Cookie headers.
//
// net/http's cookie parser rejects values it considers non-compliant
// (for example the `g_state={"i_l":0}` cookie set by Google one-tap login)
// and drops them silently along with anything it cannot tokenize. The proxy
// forwards whatever the browser sent, so this parser is deliberately
// lenient: it only needs to find the two credential cookies.
package cookiejar

import "strings"

// Jar maps cookie names to raw values.
type Jar map[string]string

// Parse splits a raw Cookie header into a Jar.
//
// Segments are separated by ';' and trimmed. Each segment is split on the
// first '=' only, so values may contain '=' (base64 padding, JWT segments).
// A value wrapped in a matching pair of double quotes is unquoted. Segments
// without '=' are skipped. On duplicate names the last occurrence wins.
func Parse(raw string) Jar {
	jar := make(Jar)
	for _, segment := range strings.Split(raw, ";") {
		segment = strings.TrimSpace(segment)
		name, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		jar[name] = value
	}
	return jar
}

// Get returns the value of the named cookie and whether it was present.
func (j Jar) Get(name string) (string, bool) {
	v, ok := j[name]
	return v, ok
}
