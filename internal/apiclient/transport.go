package apiclient

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"iprescribe-console/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

type noSessionKey struct{}

// withoutSession marks a request that must neither carry the stored
// credential nor trigger invalidation, such as the login call itself.
func withoutSession(ctx context.Context) context.Context {
	return context.WithValue(ctx, noSessionKey{}, true)
}

func isSessionless(ctx context.Context) bool {
	v, _ := ctx.Value(noSessionKey{}).(bool)
	return v
}

// authTransport applies the outbound and inbound request policies.
type authTransport struct {
	base      http.RoundTripper
	client    *Client
	userAgent string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	out := req.Clone(ctx)

	out.Header.Set("Content-Type", "application/json")
	out.Header.Set("Accept", "application/json")
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", t.userAgent)
	}
	if out.Header.Get(RequestIDHeader) == "" {
		id := logger.RequestID(ctx)
		if id == "" {
			id = uuid.NewString()
		}
		out.Header.Set(RequestIDHeader, id)
	}

	credential := ""
	if !isSessionless(ctx) {
		credential = t.client.store.Credential()
		if credential != "" {
			out.Header.Set("Authorization", "Bearer "+credential)
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && credential != "" {
		t.client.invalidate(ctx, credential, out)
	}
	return resp, nil
}
