package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SectionKey names one of the fixed sections of a summary document.
type SectionKey string

const (
	SectionSummary       SectionKey = "SectionSummary"
	CriticalDeadlines    SectionKey = "CriticalDeadlines"
	KeyItemsDecisions    SectionKey = "KeyItemsDecisions"
	ImmediateActionItems SectionKey = "ImmediateActionItems"
	NextSteps            SectionKey = "NextSteps"
	OtherImportantPoints SectionKey = "OtherImportantPoints"
	ClosingRemarks       SectionKey = "ClosingRemarks"
)

// SectionCount is the number of sections every summary document carries.
const SectionCount = 7

// SectionKeys lists the sections in document order.
var SectionKeys = [SectionCount]SectionKey{
	SectionSummary,
	CriticalDeadlines,
	KeyItemsDecisions,
	ImmediateActionItems,
	NextSteps,
	OtherImportantPoints,
	ClosingRemarks,
}

var sectionTitles = map[SectionKey]string{
	SectionSummary:       "Section Summary",
	CriticalDeadlines:    "Critical Deadlines",
	KeyItemsDecisions:    "Key Items & Decisions",
	ImmediateActionItems: "Immediate Action Items",
	NextSteps:            "Next Steps",
	OtherImportantPoints: "Other Important Points",
	ClosingRemarks:       "Closing Remarks",
}

// Title returns the display title of the section.
func (k SectionKey) Title() string {
	return sectionTitles[k]
}

// Index returns the position of k in SectionKeys, or -1.
func (k SectionKey) Index() int {
	for i, key := range SectionKeys {
		if key == k {
			return i
		}
	}
	return -1
}

// Section is an ordered list of opaque content blocks under a fixed title.
type Section struct {
	Title  string            `json:"title"`
	Blocks []json.RawMessage `json:"blocks"`
}

// SummaryDocument is the canonical merged summary of a meeting.
type SummaryDocument struct {
	MeetingName string
	Sections    [SectionCount]Section
}

// NewSummaryDocument returns a document with all seven sections titled and empty.
func NewSummaryDocument() *SummaryDocument {
	doc := &SummaryDocument{}
	for i, key := range SectionKeys {
		doc.Sections[i] = Section{Title: key.Title(), Blocks: []json.RawMessage{}}
	}
	return doc
}

// Section returns the section stored under key. It panics on an unknown key.
func (d *SummaryDocument) Section(key SectionKey) *Section {
	i := key.Index()
	if i < 0 {
		panic(fmt.Sprintf("unknown section key %q", key))
	}
	return &d.Sections[i]
}

// BlockCount returns the total number of blocks across all sections.
func (d *SummaryDocument) BlockCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Blocks)
	}
	return n
}

// MarshalJSON writes MeetingName followed by the sections in document order.
func (d SummaryDocument) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	name, err := json.Marshal(d.MeetingName)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"MeetingName":`)
	buf.Write(name)

	for i, key := range SectionKeys {
		blocks := d.Sections[i].Blocks
		if blocks == nil {
			blocks = []json.RawMessage{}
		}
		section, err := json.Marshal(Section{Title: key.Title(), Blocks: blocks})
		if err != nil {
			return nil, fmt.Errorf("marshal section %s: %w", key, err)
		}
		buf.WriteString(`,"` + string(key) + `":`)
		buf.Write(section)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a stored document. Titles always come from the fixed
// section table; unknown keys are ignored.
func (d *SummaryDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("summary document is null")
	}

	doc := NewSummaryDocument()
	if name, ok := raw["MeetingName"]; ok && string(name) != "null" {
		if err := json.Unmarshal(name, &doc.MeetingName); err != nil {
			return fmt.Errorf("MeetingName: %w", err)
		}
	}
	for i, key := range SectionKeys {
		payload, ok := raw[string(key)]
		if !ok {
			continue
		}
		var section struct {
			Blocks []json.RawMessage `json:"blocks"`
		}
		if err := json.Unmarshal(payload, &section); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		if section.Blocks != nil {
			doc.Sections[i].Blocks = section.Blocks
		}
	}

	*d = *doc
	return nil
}
