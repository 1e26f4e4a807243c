package interfaces

import "net/http"

// HTTPHandler is the surface cmd binaries mount on their servers.
type HTTPHandler interface {
	http.Handler
}
