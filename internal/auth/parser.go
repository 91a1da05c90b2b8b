package auth

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Credential header names.
const (
	// AuthorizationHeader carries Basic and Bearer credentials.
	AuthorizationHeader = "Authorization"

	// APIKeyHeader carries API key credentials.
	APIKeyHeader = "X-API-Key"

	// OTPHeader carries the step-up one-time code.
	OTPHeader = "X-OTP"

	// BehalfOfHeader names the user an administrative key acts for.
	BehalfOfHeader = "X-Behalf-Of"
)

// FromRequest extracts the credential presentation from request headers.
// An X-API-Key header takes precedence over Authorization. A request with
// neither, or with an unrecognized Authorization scheme, yields SchemeNone.
func FromRequest(r *http.Request) Presentation {
	p := Presentation{
		Scheme:   SchemeNone,
		OTP:      r.Header.Get(OTPHeader),
		BehalfOf: r.Header.Get(BehalfOfHeader),
	}

	if key := r.Header.Get(APIKeyHeader); key != "" {
		p.Scheme = SchemeAPIKey
		p.Token = key
		return p
	}

	authHeader := r.Header.Get(AuthorizationHeader)
	scheme, data, found := strings.Cut(authHeader, " ")
	if !found || data == "" {
		return p
	}

	switch {
	case strings.EqualFold(scheme, "Basic"):
		username, password, ok := decodeBasic(data)
		if !ok {
			return p
		}
		p.Scheme = SchemeBasic
		p.Username = username
		p.Password = password

	case strings.EqualFold(scheme, "Bearer"):
		p.Scheme = SchemeBearer
		p.Token = data
	}

	return p
}

// decodeBasic decodes the base64 "username:password" payload of a Basic
// Authorization header.
func decodeBasic(data string) (username, password string, ok bool) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
