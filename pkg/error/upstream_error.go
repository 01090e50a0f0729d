package error

import (
	"fmt"
	"net/http"
)

// UpstreamError reports a failed upstream fetch that could not be served from
// a stale cache copy.
type UpstreamError struct {
	Status  int
	Message string
}

func (err UpstreamError) Error() string {
	if err.Message != "" {
		return err.Message
	}
	return fmt.Sprintf("upstream responded with status %d", err.Status)
}

func (err UpstreamError) ErrCode() string {
	return "UPSTREAM_ERROR"
}

func (err UpstreamError) StatusCode() int {
	return http.StatusBadGateway
}
