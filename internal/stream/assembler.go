// Package stream reassembles text deltas out of a server-sent-event style
// chat completion stream. Chunk boundaries are arbitrary: one line may span
// several reads and one read may carry several lines.
package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "data: [DONE]"

	readChunkSize = 4096
)

// frame is the payload of one data line. Only the delta content path is
// read; everything else the backend sends is ignored.
type frame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Assembler turns one response body into an ordered sequence of text
// deltas. It is single-use: a new stream needs a new Assembler.
type Assembler struct {
	r      io.Reader
	logger *zap.Logger

	carry   string
	pending []string
	buf     []byte
	eof     bool
}

func New(r io.Reader, logger *zap.Logger) *Assembler {
	return &Assembler{
		r:      r,
		logger: logger,
		buf:    make([]byte, readChunkSize),
	}
}

// Next returns the next text delta, or io.EOF once the transport closes.
// Malformed frames are skipped, never fatal.
func (a *Assembler) Next(ctx context.Context) (string, error) {
	for {
		if len(a.pending) > 0 {
			delta := a.pending[0]
			a.pending = a.pending[1:]
			return delta, nil
		}
		if a.eof {
			return "", io.EOF
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := a.r.Read(a.buf)
		if n > 0 {
			a.pending = a.feed(string(a.buf[:n]))
		}
		if err == io.EOF {
			a.eof = true
			continue
		}
		if err != nil {
			return "", err
		}
	}
}

// feed consumes one raw chunk and returns the deltas of every complete
// line in it, keeping the unterminated tail as carry-over for the next
// chunk.
func (a *Assembler) feed(chunk string) []string {
	lines := strings.Split(a.carry+chunk, "\n")
	a.carry = lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	var deltas []string
	for _, line := range lines {
		if delta, ok := a.decode(line); ok {
			deltas = append(deltas, delta)
		}
	}
	return deltas
}

func (a *Assembler) decode(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line == doneSentinel {
		return "", false
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	var f frame
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &f); err != nil {
		a.logger.Debug("skipping malformed stream frame",
			zap.Error(err),
			zap.String("line", line))
		return "", false
	}

	if len(f.Choices) == 0 {
		return "", false
	}
	delta := f.Choices[0].Delta.Content
	return delta, delta != ""
}
