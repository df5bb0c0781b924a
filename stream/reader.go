package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/agentplay/core"
)

// Reader decodes events from an SSE stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next event. Comments and empty frames are skipped. At the
// end of the stream it returns io.EOF.
func (r *Reader) Next() (core.Event, error) {
	var data []string

	for {
		line, err := r.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return core.Event{}, err
		}

		eof := errors.Is(err, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if len(data) > 0 {
				return decodeFrame(data)
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if eof {
			if len(data) > 0 {
				return decodeFrame(data)
			}
			return core.Event{}, io.EOF
		}
	}
}

func decodeFrame(data []string) (core.Event, error) {
	var ev core.Event
	if err := json.Unmarshal([]byte(strings.Join(data, "\n")), &ev); err != nil {
		return core.Event{}, fmt.Errorf("decode event frame: %w", err)
	}
	return ev, nil
}
