package interfaces

import "context"

// -----------------------------------------------------------------------------
// INetworkManager defines the contract for HTTP requests with proxy rotation.
// -----------------------------------------------------------------------------

type INetworkManager interface {

	// -----------------------------------------------------------------------------

	// Get performs a single GET request to the specified URL with parameters.
	// Returns the response body as bytes or a classified fetch error.
	Get(ctx context.Context, url string, params map[string]string) ([]byte, error)
}
