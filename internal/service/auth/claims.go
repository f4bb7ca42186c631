package auth

import "strings"

// adminFrom reports whether any of the claim maps marks the caller as an
// admin, either through an `admin` flag or a `role` of "admin".
func adminFrom(sources ...map[string]interface{}) bool {
	for _, m := range sources {
		if m == nil {
			continue
		}
		if truthy(m["admin"]) || isAdminRole(m["role"]) {
			return true
		}
	}
	return false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true
		}
	case float64:
		return t == 1
	}
	return false
}

func isAdminRole(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "admin")
	case []interface{}:
		for _, r := range t {
			if isAdminRole(r) {
				return true
			}
		}
	}
	return false
}

func stringClaim(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
