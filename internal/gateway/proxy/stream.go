package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/broadline/agentgate/internal/gateway/metrics"
)

// streamClient has no overall timeout; stream lifetime is governed by the
// request context.
var streamClient = &http.Client{}

// RelayStream opens an SSE stream on upstreamURL with the downstream bearer
// and relays it to w until either side closes. A client disconnect cancels
// the upstream request, which is what stops a running agent prompt. An
// upstream failure after bytes have flowed cannot be turned into an HTTP
// error anymore, so it surfaces as a terminal stream_error event instead.
// There is no transparent reconnect; the client decides whether to reopen.
func RelayStream(ctx context.Context, w http.ResponseWriter, upstreamURL, bearer string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return errors.New("proxy: response writer does not support streaming")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return fmt.Errorf("proxy: build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				// Client went away; the deferred body close cancels upstream.
				return nil
			}
			flusher.Flush()
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil {
				return nil
			}
			// Upstream died mid-stream. Tell the client in-band.
			metrics.StreamErrors.Inc()
			writeStreamError(w, flusher, "upstream connection lost")
			return fmt.Errorf("proxy: upstream stream read: %w", readErr)
		}
	}
}

func writeStreamError(w http.ResponseWriter, flusher http.Flusher, message string) {
	data, _ := json.Marshal(map[string]string{"error": message})
	fmt.Fprintf(w, "event: stream_error\ndata: %s\n\n", data)
	flusher.Flush()
}
