package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
)

// ProviderError is an embedding failure tagged with the upstream HTTP status, 0 when unknown.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s embeddings (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s embeddings: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error   { return e.Err }
func (e *ProviderError) StatusCode() int { return e.Status }

func newProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Status: statusOf(err), Err: err}
}

// statusOf digs the upstream status out of google API, gRPC and plain HTTP client errors.
func statusOf(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	if ae, ok := apierror.FromError(err); ok {
		if code := ae.HTTPCode(); code > 0 {
			return code
		}
		if st := ae.GRPCStatus(); st != nil {
			return grpcToHTTP(st.Code())
		}
	}
	return statusFromMessage(err.Error())
}

var statusPattern = regexp.MustCompile(`status code:? (\d{3})`)

// statusFromMessage handles clients that only report the status in their message text.
func statusFromMessage(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func grpcToHTTP(c codes.Code) int {
	switch c {
	case codes.OK:
		return 0
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
