package client

import (
	"net/http"
	"net/http/httptest"
)

// HandlerTransport serves requests with an in-process handler instead of
// the network.
type HandlerTransport struct {
	Handler http.Handler
}

func (t HandlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	in := req.Clone(req.Context())
	if in.Body == nil {
		in.Body = http.NoBody
	}
	in.RequestURI = in.URL.RequestURI()
	in.RemoteAddr = "in-process"

	rec := httptest.NewRecorder()
	t.Handler.ServeHTTP(rec, in)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// NewInProcess returns a client that calls h directly.
func NewInProcess(h http.Handler, tokens TokenStore) *Client {
	return New("", &http.Client{Transport: HandlerTransport{Handler: h}}, tokens)
}
