package fetch

import "fmt"

// StatusError reports a non-2xx HTTP response. The URL is carried so the
// failing resource can be named all the way up at the CLI.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}
