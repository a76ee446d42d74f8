package gateway

import "strings"

const kenyaPrefix = "+254"

// NormalizePhone rewrites a Kenyan number into +254 international form.
func NormalizePhone(phone string) string {
	p := strings.Join(strings.Fields(phone), "")
	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "+"):
		return p
	case strings.HasPrefix(p, "0"):
		return kenyaPrefix + p[1:]
	case strings.HasPrefix(p, "254"):
		return "+" + p
	default:
		return kenyaPrefix + p
	}
}
