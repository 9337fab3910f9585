package serp

import (
	"net/http"
	"strings"
)

// Detector inspects a failed provider response and names the anti-bot
// mechanism that produced it, or returns "".
type Detector func(status int, header http.Header, body string) string

// Detectors are consulted in order by Challenged.
var Detectors = []Detector{
	detectGoogleSorry,
	detectCloudflare,
	detectAkamai,
	detectCaptcha,
}

// Challenged reports which interstitial, if any, blocked a request. A
// blocked request is a throttling signal rather than a credential problem,
// even when the status is 403.
func Challenged(status int, header http.Header, body string) string {
	if status < 400 {
		return ""
	}
	for _, d := range Detectors {
		if src := d(status, header, body); src != "" {
			return src
		}
	}
	return ""
}

// detectGoogleSorry matches the "unusual traffic" page Google serves to
// clients it throttles, including the keyless news feed.
func detectGoogleSorry(status int, _ http.Header, body string) string {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return ""
	}
	if strings.Contains(body, "/sorry/index") || strings.Contains(body, "unusual traffic from your computer network") {
		return "google"
	}
	return ""
}

func detectCloudflare(status int, header http.Header, body string) string {
	if status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return ""
	}
	if strings.Contains(strings.ToLower(header.Get("Server")), "cloudflare") && header.Get("Cf-Mitigated") != "" {
		return "cloudflare"
	}
	if strings.Contains(body, "cf-turnstile") ||
		strings.Contains(body, "cf-browser-verification") ||
		strings.Contains(body, "Attention Required! | Cloudflare") {
		return "cloudflare"
	}
	return ""
}

func detectAkamai(status int, header http.Header, body string) string {
	if status != http.StatusForbidden {
		return ""
	}
	if strings.Contains(body, "Reference #") && strings.Contains(body, "Access Denied") {
		return "akamai"
	}
	if strings.Contains(strings.ToLower(header.Get("Server")), "akamai") && strings.Contains(body, "Access Denied") {
		return "akamai"
	}
	return ""
}

func detectCaptcha(status int, _ http.Header, body string) string {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return ""
	}
	lower := strings.ToLower(body)
	if strings.Contains(lower, "g-recaptcha") || strings.Contains(lower, "hcaptcha") || strings.Contains(lower, "captcha-delivery.com") {
		return "captcha"
	}
	return ""
}
