package fetch

import (
	"bytes"
	"net/http"
	"strings"
)

// response is the slice of an HTTP exchange the challenge detectors inspect.
type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// detector reports whether a response is a bot-protection wall and which
// vendor served it.
type detector func(res response) (bool, string)

var detectors = []detector{
	detectCloudflare,
	detectAkamai,
	detectDataDome,
	detectPerimeterX,
}

// detectChallenge runs the detectors in order and returns the first match.
func detectChallenge(res response) (string, bool) {
	for _, d := range detectors {
		if ok, src := d(res); ok {
			return src, true
		}
	}
	return "", false
}

func serverHeader(res response) string {
	return strings.ToLower(res.Header.Get("Server"))
}

func detectCloudflare(res response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "cloudflare") ||
		bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(res response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "akamai") ||
		(bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied"))) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(serverHeader(res), "datadome") ||
		res.Header.Get("X-DataDome") != "" ||
		bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(res response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Header.Get("X-Px-Captcha") != "" ||
		bytes.Contains(res.Body, []byte("client.perimeterx.net")) ||
		bytes.Contains(res.Body, []byte("_pxBlock")) {
		return true, "PerimeterX"
	}
	return false, ""
}
