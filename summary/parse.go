// Package summary parses per-window model output and merges it into the
// canonical seven-section meeting summary.
package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jupark12/meeting-minutes/models"
)

// ErrMalformedSummary indicates window output that does not have the
// summary document shape.
var ErrMalformedSummary = errors.New("malformed window summary")

// ParseWindow decodes one window's raw model output into a summary document.
// The output must be a JSON object (optionally inside a Markdown code fence)
// carrying at least one known section, and every known section present must
// be an object with a "blocks" array. Unknown keys are ignored.
func ParseWindow(raw string) (*models.SummaryDocument, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedSummary)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSummary, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: output is null", ErrMalformedSummary)
	}

	doc := models.NewSummaryDocument()
	if name, ok := fields["MeetingName"]; ok && !isNull(name) {
		if err := json.Unmarshal(name, &doc.MeetingName); err != nil {
			return nil, fmt.Errorf("%w: MeetingName is not a string", ErrMalformedSummary)
		}
	}

	found := 0
	for i, key := range models.SectionKeys {
		payload, ok := fields[string(key)]
		if !ok {
			continue
		}
		blocks, err := parseSection(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedSummary, key, err)
		}
		doc.Sections[i].Blocks = blocks
		found++
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: no summary sections", ErrMalformedSummary)
	}

	return doc, nil
}

func parseSection(payload json.RawMessage) ([]json.RawMessage, error) {
	var section map[string]json.RawMessage
	if err := json.Unmarshal(payload, &section); err != nil || section == nil {
		return nil, errors.New("not an object")
	}
	rawBlocks, ok := section["blocks"]
	if !ok {
		return nil, errors.New("missing blocks")
	}
	rawBlocks = bytes.TrimSpace(rawBlocks)
	if len(rawBlocks) == 0 || rawBlocks[0] != '[' {
		return nil, errors.New("blocks is not an array")
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal(rawBlocks, &blocks); err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []json.RawMessage{}
	}
	return blocks, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence, which chat
// models often add around JSON output.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
