package schema

import "fmt"

// RequestError is returned by backend clients when an HTTP call comes back
// non-2xx or with an unreadable body. It is never retried; the broker
// converts it into an error-status CallResult at the dispatch boundary so a
// failing tool call cannot abort the broader turn.
type RequestError struct {
	Op     string // short operation label, e.g. "connector: list tools"
	Status int    // HTTP status code, 0 when the request never completed
	Body   string // response body excerpt
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: request failed: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Body)
}

// ResponseShapeError reports a backend response missing a field the caller
// cannot proceed without (e.g. no video URI part, no context id).
type ResponseShapeError struct {
	Op     string
	Wanted string
}

func (e *ResponseShapeError) Error() string {
	return fmt.Sprintf("%s: response contains no %s", e.Op, e.Wanted)
}
