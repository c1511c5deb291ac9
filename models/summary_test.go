package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSummaryDocument_FixedSections(t *testing.T) {
	doc := NewSummaryDocument()

	for i, key := range SectionKeys {
		assert.Equal(t, key.Title(), doc.Sections[i].Title)
		assert.NotNil(t, doc.Sections[i].Blocks)
		assert.Empty(t, doc.Sections[i].Blocks)
	}
	assert.Equal(t, "Key Items & Decisions", doc.Section(KeyItemsDecisions).Title)
	assert.Equal(t, 0, doc.BlockCount())
}

func TestSectionKey_Index(t *testing.T) {
	assert.Equal(t, 0, SectionSummary.Index())
	assert.Equal(t, 6, ClosingRemarks.Index())
	assert.Equal(t, -1, SectionKey("Appendix").Index())
}

func TestSummaryDocument_MarshalPreservesSectionOrder(t *testing.T) {
	doc := NewSummaryDocument()
	doc.MeetingName = "Weekly sync"
	doc.Section(NextSteps).Blocks = append(doc.Section(NextSteps).Blocks, json.RawMessage(`{"content":"ship it"}`))

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, `{"MeetingName":"Weekly sync","SectionSummary":`))
	last := -1
	for _, key := range SectionKeys {
		pos := strings.Index(out, `"`+string(key)+`"`)
		require.Greater(t, pos, last, "section %s out of order", key)
		last = pos
	}
	assert.Contains(t, out, `"NextSteps":{"title":"Next Steps","blocks":[{"content":"ship it"}]}`)
}

func TestSummaryDocument_MarshalNilBlocksAsEmptyArray(t *testing.T) {
	var doc SummaryDocument

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ClosingRemarks":{"title":"Closing Remarks","blocks":[]}`)
}

func TestSummaryDocument_UnmarshalRoundTrip(t *testing.T) {
	doc := NewSummaryDocument()
	doc.MeetingName = "Planning"
	doc.Section(CriticalDeadlines).Blocks = []json.RawMessage{json.RawMessage(`"friday"`)}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded SummaryDocument
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Planning", decoded.MeetingName)
	require.Len(t, decoded.Section(CriticalDeadlines).Blocks, 1)
	assert.JSONEq(t, `"friday"`, string(decoded.Section(CriticalDeadlines).Blocks[0]))
}

func TestSummaryDocument_UnmarshalIgnoresInputTitles(t *testing.T) {
	var doc SummaryDocument
	err := json.Unmarshal([]byte(`{"NextSteps":{"title":"Whatever","blocks":[1]},"Extra":{}}`), &doc)
	require.NoError(t, err)

	assert.Equal(t, "Next Steps", doc.Section(NextSteps).Title)
	assert.Len(t, doc.Section(NextSteps).Blocks, 1)
}

func TestSummaryDocument_UnmarshalRejectsNonObject(t *testing.T) {
	var doc SummaryDocument
	assert.Error(t, json.Unmarshal([]byte(`[]`), &doc))
	assert.Error(t, json.Unmarshal([]byte(`null`), &doc))
}

func TestJobStatus(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusCreated.IsKnown())
	assert.False(t, JobStatus("archived").IsKnown())
}
