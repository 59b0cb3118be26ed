package provider

import "net/http"

// apiKeyHeaderTransport adds the "api-key" header GitHub Models and Azure
// AI Inference expect; go-openai's default Authorization bearer header is
// still sent alongside it.
type apiKeyHeaderTransport struct {
	key  string
	base http.RoundTripper
}

func (t apiKeyHeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("api-key", t.key)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
