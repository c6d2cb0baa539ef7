package models

import "errors"

// Error taxonomy. Callers match with errors.Is; producers wrap with %w and
// attach context.
var (
	// ErrConnection covers transport or TLS establishment failures. Retried
	// by the reconnect policy, fatal once retries are exhausted.
	ErrConnection = errors.New("connection error")

	// ErrProtocol covers unexpected disconnects and malformed control frames.
	ErrProtocol = errors.New("protocol error")

	// ErrDiscovery means symbol resolution failed after retries and no
	// fallback list is configured.
	ErrDiscovery = errors.New("discovery error")

	// ErrMalformedPayload means one data frame did not match the expected
	// schema. The frame is dropped and the stream continues.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnsupportedMarketType means the exchange does not offer the
	// requested market type.
	ErrUnsupportedMarketType = errors.New("unsupported market type")

	// ErrUnsupportedChannel means the exchange does not offer the requested
	// channel on the requested market type.
	ErrUnsupportedChannel = errors.New("unsupported channel")

	// ErrConfiguration means pair normalization or contract value lookup
	// failed for a resolved symbol.
	ErrConfiguration = errors.New("configuration error")
)
