package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/codeguard-mcp/pkg/types"
)

// StreamPath is the streaming search endpoint
const StreamPath = "/.api/search/stream"

// maxLineSize bounds a single event line in the stream
const maxLineSize = 4 * 1024 * 1024

// PatternType selects how the service interprets a query pattern
type PatternType string

const (
	PatternLiteral PatternType = "literal"
	PatternRegexp  PatternType = "regexp"
)

// EventMatch is the only event type retained from the stream
const EventMatch = "match"

// StreamRequest is a streaming search call
type StreamRequest struct {
	Query       string
	PatternType PatternType
	Count       int
	Timeout     time.Duration
	Operation   string
}

// StreamResult holds the match events of a search, in arrival order
type StreamResult struct {
	Matches       []types.Match
	Skipped       int // lines that failed to parse
	CorrelationID string
	Attempts      int
	Duration      time.Duration
	Bytes         int
}

// streamEvent is one line of the newline-delimited response
type streamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Stream runs a search and returns its match events
func (c *Client) Stream(ctx context.Context, req StreamRequest) (*StreamResult, error) {
	if req.PatternType == "" {
		req.PatternType = PatternLiteral
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	if req.Operation == "" {
		req.Operation = "search.stream"
	}

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("patternType", string(req.PatternType))
	if req.Count > 0 {
		params.Set("count", strconv.Itoa(req.Count))
	}
	params.Set("timeout", req.Timeout.String())

	resp, err := c.Do(ctx, Request{
		Method:    http.MethodGet,
		Path:      StreamPath,
		Params:    params,
		Timeout:   req.Timeout,
		Operation: req.Operation,
	})
	if err != nil {
		return nil, err
	}

	matches, skipped, err := ParseMatchStream(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: read stream: %w", req.Operation, err)
	}

	return &StreamResult{
		Matches:       matches,
		Skipped:       skipped,
		CorrelationID: resp.CorrelationID,
		Attempts:      resp.Attempts,
		Duration:      resp.Duration,
		Bytes:         len(resp.Body),
	}, nil
}

// ParseMatchStream folds a newline-delimited JSON stream into its match
// events. Lines that are not valid JSON, lines longer than maxLineSize, and
// match events without a decodable payload carrying a path are skipped and
// counted; other event types are ignored. Only a read failure of r fails the
// parse.
func ParseMatchStream(r io.Reader) ([]types.Match, int, error) {
	reader := bufio.NewReaderSize(r, 64*1024)

	matches := make([]types.Match, 0)
	skipped := 0

	var line []byte
	oversized := false
	for {
		chunk, err := reader.ReadSlice('\n')
		if !oversized {
			if len(line)+len(chunk) > maxLineSize {
				oversized = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, skipped, err
		}

		if oversized {
			skipped++
		} else if m, ok, counted := decodeMatchLine(line); counted {
			if ok {
				matches = append(matches, m)
			} else {
				skipped++
			}
		}
		line = line[:0]
		oversized = false

		if err != nil {
			return matches, skipped, nil
		}
	}
}

// decodeMatchLine decodes one stream line. counted is false for blank lines and
// non-match events; a counted line with ok false is skipped.
func decodeMatchLine(line []byte) (m types.Match, ok, counted bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return m, false, false
	}

	var ev streamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return m, false, true
	}
	if !strings.EqualFold(ev.Type, EventMatch) {
		return m, false, false
	}

	data := bytes.TrimSpace(ev.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return m, false, true
	}
	if err := json.Unmarshal(data, &m); err != nil || m.Path == "" {
		return types.Match{}, false, true
	}
	return m, true, true
}
