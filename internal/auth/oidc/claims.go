package oidc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// Standard claim names consulted during reconciliation.
const (
	ClaimSubject       = "sub"
	ClaimEmail         = "email"
	ClaimEmailVerified = "email_verified"
	ClaimGivenName     = "given_name"
	ClaimFamilyName    = "family_name"
	ClaimName          = "name"
	ClaimUsername      = "username"
	ClaimPicture       = "picture"
)

// Claims is a dynamically shaped set of identity claims, as returned by a
// provider's user-info endpoint or carried in an identity token payload.
type Claims map[string]any

// Lookup walks a dot-separated path ("realm_access.roles") through nested
// objects. Numeric segments index into arrays. A top-level key equal to the
// whole path wins over the walk, so namespaced claims such as
// "https://example.com/roles" resolve. Absent keys, wrong shapes and
// out-of-range indexes all report ok=false.
func (c Claims) Lookup(path string) (any, bool) {
	if c == nil || path == "" {
		return nil, false
	}
	if v, ok := c[path]; ok {
		return v, v != nil
	}
	var cur any = map[string]any(c)
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case Claims:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// String returns the named claim as a string. Numeric claims are formatted
// without exponent so numeric subject identifiers survive.
func (c Claims) String(name string) (string, bool) {
	v, ok := c.Lookup(name)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

// Bool returns the named claim as a bool. Some providers send
// email_verified as the string "true"; that is accepted too.
func (c Claims) Bool(name string) (bool, bool) {
	v, ok := c.Lookup(name)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// Strings normalizes a claim value that may be a single string or a list of
// strings. Non-string list elements are skipped.
func Strings(v any) ([]string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil, false
		}
		return []string{t}, true
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// idTokenAlgorithms lists the signature algorithms accepted when parsing an
// identity token for its payload.
var idTokenAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
	jose.HS256, jose.HS384, jose.HS512,
}

// DecodeIDToken returns the payload of a compact JWS identity token without
// verifying its signature. Callers must only use this on tokens already
// verified upstream (the code exchange verifies every id_token it returns).
func DecodeIDToken(raw string) (Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty id token")
	}
	tok, err := jwt.ParseSigned(raw, idTokenAlgorithms)
	if err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}
	var payload map[string]any
	if err := tok.UnsafeClaimsWithoutVerification(&payload); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	return Claims(payload), nil
}
