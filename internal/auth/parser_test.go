package auth

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"
)

func TestFromRequest(t *testing.T) {
	basic := func(username, password string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	}

	tests := []struct {
		name    string
		headers map[string]string
		want    Presentation
	}{
		{
			name:    "no headers",
			headers: nil,
			want:    Presentation{Scheme: SchemeNone},
		},
		{
			name:    "basic",
			headers: map[string]string{"Authorization": basic("alice1", "hunter2:with:colons")},
			want:    Presentation{Scheme: SchemeBasic, Username: "alice1", Password: "hunter2:with:colons"},
		},
		{
			name:    "basic lowercase scheme",
			headers: map[string]string{"Authorization": "basic " + base64.StdEncoding.EncodeToString([]byte("alice1:pw"))},
			want:    Presentation{Scheme: SchemeBasic, Username: "alice1", Password: "pw"},
		},
		{
			name:    "basic undecodable payload",
			headers: map[string]string{"Authorization": "Basic %%%"},
			want:    Presentation{Scheme: SchemeNone},
		},
		{
			name:    "bearer",
			headers: map[string]string{"Authorization": "Bearer some.jwt.token"},
			want:    Presentation{Scheme: SchemeBearer, Token: "some.jwt.token"},
		},
		{
			name:    "unknown scheme",
			headers: map[string]string{"Authorization": "Digest abc"},
			want:    Presentation{Scheme: SchemeNone},
		},
		{
			name:    "api key",
			headers: map[string]string{"X-API-Key": "key-token"},
			want:    Presentation{Scheme: SchemeAPIKey, Token: "key-token"},
		},
		{
			name: "api key wins over authorization",
			headers: map[string]string{
				"X-API-Key":     "key-token",
				"Authorization": "Bearer some.jwt.token",
			},
			want: Presentation{Scheme: SchemeAPIKey, Token: "key-token"},
		},
		{
			name: "otp and behalf-of pass through",
			headers: map[string]string{
				"X-API-Key":   "key-token",
				"X-OTP":       "123456",
				"X-Behalf-Of": "alice1",
			},
			want: Presentation{Scheme: SchemeAPIKey, Token: "key-token", OTP: "123456", BehalfOf: "alice1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			got := FromRequest(r)
			if got != tt.want {
				t.Errorf("FromRequest = %#v, want %#v", got, tt.want)
			}
		})
	}
}
