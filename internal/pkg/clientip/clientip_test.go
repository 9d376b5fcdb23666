package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolveWith(t *testing.T, headers map[string]string) string {
	t.Helper()
	app := fiber.New()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got = FromRequest(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return got
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected string
	}{
		{"x-forwarded-for first public", map[string]string{"X-Forwarded-For": "10.0.0.1, 203.0.113.5, 198.51.100.2"}, "203.0.113.5"},
		{"ipv4 preferred over ipv6", map[string]string{"X-Forwarded-For": "2001:db8::1, 203.0.113.6"}, "203.0.113.6"},
		{"ipv6 when nothing else", map[string]string{"X-Forwarded-For": "2001:db8::2"}, "2001:db8::2"},
		{"port stripped", map[string]string{"X-Forwarded-For": "203.0.113.7:51234"}, "203.0.113.7"},
		{"x-real-ip", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"cloudflare", map[string]string{"X-Forwarded-For": "192.168.1.1", "CF-Connecting-IP": "198.51.100.10"}, "198.51.100.10"},
		{"forwarded header", map[string]string{"Forwarded": `for="[2001:db8::3]:443";proto=https, for=203.0.113.8`}, "203.0.113.8"},
		{"only private addresses", map[string]string{"X-Forwarded-For": "10.1.1.1"}, Fallback},
		{"no headers", nil, Fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveWith(t, tt.headers))
		})
	}
}

func TestNormalizeIP(t *testing.T) {
	ip, parsed := normalizeIP(" \"fe80::1%eth0\" ")
	assert.Equal(t, "fe80::1", ip)
	assert.NotNil(t, parsed)

	ip, _ = normalizeIP("::ffff:203.0.113.1")
	assert.Equal(t, "203.0.113.1", ip)

	_, parsed = normalizeIP("unknown")
	assert.Nil(t, parsed)
}
