package scrape

import (
	"bytes"

	"github.com/rotisserie/eris"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// ErrBlocked is returned when a results page turns out to be an anti-bot
// interstitial rather than listings.
var ErrBlocked = eris.New("scrape: blocked by listing site")

// DetectBlock checks a page body for signs of anti-bot protection. It is
// only consulted when a page yields no listings, since normal result pages
// can mention captcha in their scripts.
func DetectBlock(body []byte) (bool, BlockType) {
	lower := bytes.ToLower(body)

	if bytes.Contains(lower, []byte("checking your browser")) ||
		bytes.Contains(lower, []byte("cf-browser-verification")) ||
		bytes.Contains(lower, []byte("cloudflare")) && bytes.Contains(lower, []byte("challenge")) {
		return true, BlockCloudflare
	}

	if bytes.Contains(lower, []byte("captcha")) {
		return true, BlockCaptcha
	}

	// JS-only shell: tiny body with noscript or meta refresh.
	if len(body) < 2000 {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
			return true, BlockJSShell
		}
		if bytes.Contains(lower, []byte(`meta http-equiv="refresh"`)) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
