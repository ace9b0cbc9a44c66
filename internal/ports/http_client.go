package ports

import "net/http"

// HTTPDoer sends requests for the forum adapter. *http.Client satisfies it;
// the adapter adds authentication and classifies failures itself.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
