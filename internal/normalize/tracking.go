package normalize

import (
	"strings"

	"payment-webhook-service/internal/model"
)

var utmKeys = []string{"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term"}

// Tracking flattens attribution fields into one map. fields holds whatever
// the gateway reports (utm_* plus its own click ids); clickIDs names the
// gateway-specific keys worth keeping. The gateway name is always stamped.
func Tracking(gateway string, fields map[string]string, clickIDs ...string) model.Tracking {
	out := model.Tracking{"gateway": gateway}

	lower := make(map[string]string, len(fields))
	for k, v := range fields {
		if v = strings.TrimSpace(v); v != "" {
			lower[strings.ToLower(k)] = v
		}
	}

	for _, k := range utmKeys {
		if v, ok := lower[k]; ok {
			out[k] = v
		}
	}
	for _, k := range clickIDs {
		if v, ok := lower[strings.ToLower(k)]; ok {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}

// Optional turns blank strings into nil.
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
