package services

import (
	"encoding/json"
	"strings"

	types "github.com/yungbote/entitlement-engine/internal/domain"
)

// displayName picks the profile name, then identity-provider metadata
// (full_name, name), then the email address.
func displayName(profile *types.Profile, account *types.User) string {
	if profile != nil {
		if n := strings.TrimSpace(profile.FullName); n != "" {
			return n
		}
	}
	if account == nil {
		return ""
	}
	if len(account.Metadata) > 0 {
		var md map[string]any
		if err := json.Unmarshal(account.Metadata, &md); err == nil {
			for _, key := range []string{"full_name", "name"} {
				if v, ok := md[key].(string); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
		}
	}
	return account.Email
}
