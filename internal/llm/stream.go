package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
)

// doneMarker is the literal terminal sentinel on the provider event stream.
const doneMarker = "[DONE]"

// maxLineSize bounds a single SSE line; provider deltas are far smaller.
const maxLineSize = 2 << 20

// scanStream frames the raw response body into a lazy sequence of parsed
// chunks. A line may span multiple network reads; the scanner buffers the
// partial tail. Blank lines and lines without the data prefix are ignored,
// the [DONE] marker ends iteration cleanly, and lines that fail to parse as
// JSON are skipped so malformed upstream data cannot abort the stream.
//
// The body is closed when iteration ends, including on early break.
func scanStream(body io.ReadCloser) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		defer func() { _ = body.Close() }()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}

			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" {
				continue
			}
			if data == doneMarker {
				return
			}

			var chunk Chunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}

			if !yield(chunk, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Chunk{}, fmt.Errorf("reading provider stream: %w", err))
		}
	}
}
