package document

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"docquorum/internal/util"

	"github.com/stretchr/testify/require"
)

func TestParseTOC(t *testing.T) {
	text := "Introduction .... 1\n\nGeneral Provisions 4\nno page here\n  Definitions and Scope .  12  \n42\nPart II. 7x\n"
	got := ParseTOC(text)
	require.Equal(t, []TOCEntry{
		{Title: "Introduction", Page: 1},
		{Title: "General Provisions", Page: 4},
		{Title: "Definitions and Scope", Page: 12},
	}, got)
}

func TestParseTOCStripsTrailingDots(t *testing.T) {
	got := ParseTOC("Chapter One . 3")
	require.Equal(t, []TOCEntry{{Title: "Chapter One", Page: 3}}, got)
}

func TestParseTOCLongLines(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	text := "Preface 1\n" + long + " 2\n" + long + "\nGlossary 9\r\n"
	got := ParseTOC(text)
	require.Len(t, got, 3)
	require.Equal(t, TOCEntry{Title: "Preface", Page: 1}, got[0])
	require.Equal(t, 2, got[1].Page)
	require.Len(t, got[1].Title, len(long))
	require.Equal(t, TOCEntry{Title: "Glossary", Page: 9}, got[2])
}

func pagesN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i+1)
	}
	return out
}

func TestSegmentBoundaries(t *testing.T) {
	entries := []TOCEntry{{"A", 1}, {"B", 4}, {"C", 8}}
	secs, err := Segment(pagesN(10), entries, 0)
	require.NoError(t, err)
	require.Len(t, secs, 3)

	require.Equal(t, 1, secs[0].StartPage)
	require.Equal(t, 3, secs[0].EndPage)
	require.Equal(t, "p1\np2\np3", secs[0].Text)

	require.Equal(t, 4, secs[1].StartPage)
	require.Equal(t, 7, secs[1].EndPage)

	require.Equal(t, 8, secs[2].StartPage)
	require.Equal(t, 10, secs[2].EndPage)
	require.Equal(t, 2, secs[2].Index)
}

func TestSegmentOffsetAndClamp(t *testing.T) {
	secs, err := Segment(pagesN(10), []TOCEntry{{"A", 1}, {"B", 20}}, 2)
	require.NoError(t, err)
	require.Equal(t, 3, secs[0].StartPage)
	require.Equal(t, 10, secs[0].EndPage)
	// B starts past the last page and is clamped onto it.
	require.Equal(t, 10, secs[1].StartPage)
	require.Equal(t, 10, secs[1].EndPage)
	require.Equal(t, "p10", secs[1].Text)
}

func TestSegmentNextEntryOnSamePage(t *testing.T) {
	secs, err := Segment(pagesN(5), []TOCEntry{{"A", 2}, {"B", 2}}, 0)
	require.NoError(t, err)
	require.Equal(t, 2, secs[0].StartPage)
	require.Equal(t, 2, secs[0].EndPage)
}

func TestSegmentErrors(t *testing.T) {
	_, err := Segment(pagesN(3), nil, 0)
	require.ErrorIs(t, err, util.ErrEmptyTOC)

	_, err = Segment(nil, []TOCEntry{{"A", 1}}, 0)
	require.True(t, errors.Is(err, util.ErrNoExtractableText))
}

func TestFindByTitle(t *testing.T) {
	secs, err := Segment(pagesN(4), []TOCEntry{{"Scope", 1}, {"Penalties", 3}}, 0)
	require.NoError(t, err)
	s, ok := FindByTitle(secs, " penalties ")
	require.True(t, ok)
	require.Equal(t, 1, s.Index)
	_, ok = FindByTitle(secs, "missing")
	require.False(t, ok)
}

func TestExtractPagesMissingFile(t *testing.T) {
	_, err := ExtractPages("/nonexistent/doc.pdf")
	require.Error(t, err)
}

func TestExtractPagesFromBytesRejectsGarbage(t *testing.T) {
	_, err := ExtractPagesFromBytes([]byte("not a pdf"))
	require.Error(t, err)
}
