package testutil

import (
	"net/http"

	"dronewatch/pkg/platform/middleware/request"
	"dronewatch/pkg/platform/middleware/secret"
)

// WithSecret sets the shared-secret header used by /nfz.
func WithSecret(req *http.Request, value string) *http.Request {
	req.Header.Set(secret.Header, value)
	return req
}

// WithRequestID sets the inbound request id header.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	req.Header.Set(request.HeaderRequestID, requestID)
	return req
}
