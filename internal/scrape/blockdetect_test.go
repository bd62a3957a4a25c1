package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		resp   *http.Response
		body   string
		expect BlockType
	}{
		{
			name:   "cloudflare ray header",
			resp:   &http.Response{StatusCode: 403, Header: http.Header{"Cf-Ray": {"abc123"}}},
			expect: BlockCloudflare,
		},
		{
			name:   "cloudflare server 503",
			resp:   &http.Response{StatusCode: 503, Header: http.Header{"Server": {"Cloudflare"}}},
			expect: BlockCloudflare,
		},
		{
			name:   "captcha body",
			resp:   &http.Response{StatusCode: 200, Header: http.Header{}},
			body:   "<html><body>Please complete the reCAPTCHA to continue</body></html>",
			expect: BlockCaptcha,
		},
		{
			name:   "noscript shell",
			resp:   &http.Response{StatusCode: 200, Header: http.Header{}},
			body:   "<html><noscript>Enable JavaScript to continue</noscript></html>",
			expect: BlockJSShell,
		},
		{
			name:   "meta refresh",
			resp:   &http.Response{StatusCode: 200, Header: http.Header{}},
			body:   `<html><meta http-equiv="refresh" content="0;url=/x"></html>`,
			expect: BlockJSShell,
		},
		{
			name:   "nil response",
			expect: BlockNone,
		},
		{
			name:   "clean page",
			resp:   &http.Response{StatusCode: 200, Header: http.Header{}},
			body:   "<html><body>Quarterly EV charger shipments rose 40%.</body></html>",
			expect: BlockNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, DetectBlock(tt.resp, []byte(tt.body)))
		})
	}
}

func TestIsChallengeText(t *testing.T) {
	article := strings.Repeat("Grid operators expanded fast-charging capacity in 2025. ", 5)

	assert.True(t, IsChallengeText(""))
	assert.True(t, IsChallengeText("too short"))
	assert.True(t, IsChallengeText("Just a moment... "+strings.Repeat("x", 150)))
	assert.False(t, IsChallengeText(article))
	// Long pages that merely mention a signature are content.
	assert.False(t, IsChallengeText(strings.Repeat("cloudflare network news. ", 60)))
}
