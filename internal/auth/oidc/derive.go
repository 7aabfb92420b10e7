package oidc

import "strings"

// claimRule extracts one candidate value from a claim set. Rules are
// evaluated in order and the first non-empty result wins.
type claimRule func(Claims) string

func claimValue(name string) claimRule {
	return func(c Claims) string {
		s, _ := c.String(name)
		return strings.TrimSpace(s)
	}
}

func fullName(c Claims) string {
	given, _ := c.String(ClaimGivenName)
	family, _ := c.String(ClaimFamilyName)
	return strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(family))
}

func firstNonEmpty(c Claims, rules []claimRule) string {
	for _, rule := range rules {
		if v := rule(c); v != "" {
			return v
		}
	}
	return ""
}

// usernameRules: override claim, username, given_name, email.
func usernameRules(override string) []claimRule {
	rules := make([]claimRule, 0, 4)
	if override != "" {
		rules = append(rules, claimValue(override))
	}
	return append(rules,
		claimValue(ClaimUsername),
		claimValue(ClaimGivenName),
		claimValue(ClaimEmail),
	)
}

// nameRules: override claim, "given family", username, email.
func nameRules(override string) []claimRule {
	rules := make([]claimRule, 0, 4)
	if override != "" {
		rules = append(rules, claimValue(override))
	}
	return append(rules,
		fullName,
		claimValue(ClaimUsername),
		claimValue(ClaimEmail),
	)
}

// DeriveUsername returns the username a new user would receive from claims.
func DeriveUsername(c Claims, override string) string {
	return firstNonEmpty(c, usernameRules(override))
}

// DeriveName returns the display name derived from claims.
func DeriveName(c Claims, override string) string {
	return firstNonEmpty(c, nameRules(override))
}
