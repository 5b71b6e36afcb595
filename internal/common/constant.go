package common

// AuthorizationHeaderName is the gRPC metadata key carrying the bearer access token.
const AuthorizationHeaderName = "authorization"

// RequestIDHeaderName is the gRPC metadata key used to correlate log lines of one call.
const RequestIDHeaderName = "x-request-id"

// BearerTokenType is returned to clients next to a freshly issued token pair.
const BearerTokenType = "bearer"
