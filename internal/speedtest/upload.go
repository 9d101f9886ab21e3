package speedtest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/SkylerRankin/netquality/internal/payload"
	"github.com/SkylerRankin/netquality/internal/types"
)

// measureUpload posts the same payload once per connection. The payload is
// generated once and only read afterwards, so every request gets its own
// reader over the shared slice.
func (s *session) measureUpload(ctx context.Context, progress ProgressFunc) (types.ThroughputResult, error) {
	const op = "upload"

	body, err := payload.Generate(s.cfg.UploadSize)
	if err != nil {
		return types.ThroughputResult{}, newError(KindOther, op, err)
	}

	expected := int64(len(body)) * int64(s.cfg.ParallelConnections)
	return s.runParallel(ctx, types.PhaseUpload, op, expected, progress, func(ctx context.Context, counter *atomic.Int64) error {
		if err := s.upload(ctx, op, body); err != nil {
			return err
		}
		counter.Add(int64(len(body)))
		return nil
	})
}

func (s *session) upload(ctx context.Context, op string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UploadURL, bytes.NewReader(body))
	if err != nil {
		return newError(KindOther, op, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return requestError(ctx, op, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(op, resp.StatusCode)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return requestError(ctx, op, err)
	}
	return nil
}
