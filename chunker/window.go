// Package chunker splits transcript text into overlapping, indexed windows
// for independent summarization.
package chunker

import (
	"errors"
	"fmt"
)

// Default window parameters, in characters.
const (
	DefaultChunkSize = 5000
	DefaultOverlap   = 1000
)

var (
	// ErrInvalidConfig indicates a non-positive chunk size or negative overlap.
	ErrInvalidConfig = errors.New("invalid chunking config")

	// ErrEmptyInput indicates there is no text to split.
	ErrEmptyInput = errors.New("empty transcript text")
)

// Window is one contiguous slice of the source text. Start and End are
// character (rune) offsets, End exclusive.
type Window struct {
	Index int
	Start int
	End   int
	Text  string
}

// Len returns the window length in characters.
func (w Window) Len() int {
	return w.End - w.Start
}

// Params returns the effective overlap and step for the given settings.
// An overlap of chunkSize or more is clamped to chunkSize-1.
func Params(chunkSize, overlap int) (effectiveOverlap, step int, err error) {
	if chunkSize <= 0 {
		return 0, 0, fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 {
		return 0, 0, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return overlap, chunkSize - overlap, nil
}

// Split cuts text into windows of chunkSize characters whose starts advance
// by chunkSize minus the (clamped) overlap. The last window may be shorter.
func Split(text string, chunkSize, overlap int) ([]Window, error) {
	_, step, err := Params(chunkSize, overlap)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyInput
	}

	runes := []rune(text)
	total := len(runes)

	windows := make([]Window, 0, total/step+1)
	for start := 0; start < total; start += step {
		end := start + chunkSize
		if end > total {
			end = total
		}
		windows = append(windows, Window{
			Index: len(windows),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
	}

	return windows, nil
}
