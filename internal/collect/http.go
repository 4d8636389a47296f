package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/sony/gobreaker"
)

var (
	errClientNotConfigured = errors.New("client not configured")
	errUnexpectedStatus    = errors.New("unexpected status code")
	errCircuitOpen         = errors.New("circuit breaker open")
)

// doRequest executes the request through the circuit breaker and returns the
// response body on a 2xx status. Non-2xx responses are logged with their body
// and mapped to errUnexpectedStatus; the caller cannot distinguish a timeout
// from a transport error.
func doRequest(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, req *http.Request) ([]byte, error) {
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Printf("ERROR: %s returned %d: %s", req.URL.Host, resp.StatusCode, truncateBody(body))
			return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		}

		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}

// truncateBody keeps error logs readable when upstreams return large bodies.
func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
