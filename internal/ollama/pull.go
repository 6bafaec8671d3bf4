// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ProgressCallback is called for each status line of a model download.
type ProgressCallback func(PullProgress)

// =============================================================================
// PULL
// =============================================================================

// Pull downloads a model through {base}/pull, reporting each NDJSON status
// line to fn. It returns when the service reports "success", the stream
// ends, or ctx is cancelled. A status line carrying an error ends the pull
// with an HTTPError.
func (c *Client) Pull(ctx context.Context, name string, fn ProgressCallback) error {
	resp, err := c.postJSON(ctx, "/pull", PullRequest{Name: name, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readHTTPError(resp)
	}

	reader := NewProgressReader(resp.Body)
	for {
		if err := ctx.Err(); err != nil {
			return &TransportError{Op: "POST", URL: c.baseURL + "/pull", Cause: err}
		}

		p, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &TransportError{Op: "POST", URL: c.baseURL + "/pull", Cause: err}
		}
		if p.Error != "" {
			return &HTTPError{StatusCode: http.StatusOK, Message: p.Error}
		}
		if fn != nil {
			fn(p)
		}
		if p.Status == "success" {
			return nil
		}
	}
}

// =============================================================================
// PROGRESS READER
// =============================================================================

// ProgressReader handles line-by-line JSON parsing of a pull stream.
type ProgressReader struct {
	reader *bufio.Reader
}

// NewProgressReader creates a new progress reader from an io.Reader.
func NewProgressReader(r io.Reader) *ProgressReader {
	return &ProgressReader{reader: bufio.NewReader(r)}
}

// Next returns the next status line. Blank and malformed lines are skipped.
// io.EOF marks the end of the stream.
func (r *ProgressReader) Next() (PullProgress, error) {
	for {
		line, err := r.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)

		if len(line) > 0 {
			var p PullProgress
			if jerr := json.Unmarshal(line, &p); jerr == nil {
				return p, nil
			}
		}

		if err != nil {
			return PullProgress{}, err
		}
	}
}
