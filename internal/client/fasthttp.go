package client

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

// Do runs req bounded by the context deadline, or by fallback when ctx has none, and
// returns early when ctx is cancelled. resp is only written on success.
func Do(ctx context.Context, hc *fasthttp.Client, fallback time.Duration, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(fallback)
	}

	type result struct {
		resp *fasthttp.Response
		err  error
	}
	done := make(chan result, 1)
	// fasthttp has no context support: the goroutine owns its own request and response
	// so the caller can return as soon as ctx is cancelled.
	reqCopy := fasthttp.AcquireRequest()
	req.CopyTo(reqCopy)
	go func() {
		respCopy := fasthttp.AcquireResponse()
		err := hc.DoDeadline(reqCopy, respCopy, deadline)
		fasthttp.ReleaseRequest(reqCopy)
		done <- result{resp: respCopy, err: err}
	}()

	select {
	case r := <-done:
		defer fasthttp.ReleaseResponse(r.resp)
		if r.err != nil {
			return r.err
		}
		r.resp.CopyTo(resp)
		return nil
	case <-ctx.Done():
		go func() {
			r := <-done
			fasthttp.ReleaseResponse(r.resp)
		}()
		return ctx.Err()
	}
}

// Truncate caps a response body for logs and errors.
func Truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
