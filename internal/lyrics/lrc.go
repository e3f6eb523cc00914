package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var timestampPattern = regexp.MustCompile(`\[(\d+):(\d{1,2})(?:[.:](\d{1,3}))?\]`)

// Line is a single timestamped lyric line.
type Line struct {
	Timestamp time.Duration
	Text      string
}

// Document is a parsed LRC file: timestamped lines sorted by timestamp
// ascending, regardless of their order in the source text.
type Document struct {
	Lines []Line
}

// ParseLRC parses LRC text into a Document. A source line may carry several
// timestamps, each producing its own Line. Lines without a timestamp are
// ignored.
func ParseLRC(text string) *Document {
	doc := &Document{}

	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, "\r")
		matches := timestampPattern.FindAllStringSubmatchIndex(raw, -1)
		if len(matches) == 0 {
			continue
		}

		content := strings.TrimSpace(raw[matches[len(matches)-1][1]:])
		for _, match := range matches {
			ts, ok := parseTimestamp(raw, match)
			if !ok {
				continue
			}
			doc.Lines = append(doc.Lines, Line{Timestamp: ts, Text: content})
		}
	}

	sort.SliceStable(doc.Lines, func(i, j int) bool {
		return doc.Lines[i].Timestamp < doc.Lines[j].Timestamp
	})

	return doc
}

func parseTimestamp(raw string, match []int) (time.Duration, bool) {
	minutes, err := strconv.Atoi(raw[match[2]:match[3]])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(raw[match[4]:match[5]])
	if err != nil || seconds >= 60 {
		return 0, false
	}

	ts := time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second

	if match[6] >= 0 {
		fraction := raw[match[6]:match[7]]
		parsed, err := strconv.Atoi(fraction)
		if err != nil {
			return 0, false
		}
		switch len(fraction) {
		case 1:
			ts += time.Duration(parsed) * 100 * time.Millisecond
		case 2:
			ts += time.Duration(parsed) * 10 * time.Millisecond
		default:
			ts += time.Duration(parsed) * time.Millisecond
		}
	}

	return ts, true
}

// LineIndexAt returns the index of the line active at or before t: the first
// line when t precedes all lines, the last line when t follows all lines, and
// -1 for an empty document. Stateless binary search.
func (d *Document) LineIndexAt(t time.Duration) int {
	if len(d.Lines) == 0 {
		return -1
	}

	// First line whose timestamp is strictly after t.
	idx := sort.Search(len(d.Lines), func(i int) bool {
		return d.Lines[i].Timestamp > t
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// LineAt returns the line active at or before t.
func (d *Document) LineAt(t time.Duration) (Line, bool) {
	idx := d.LineIndexAt(t)
	if idx < 0 {
		return Line{}, false
	}
	return d.Lines[idx], true
}

// hintScanWindow bounds how far a Cursor scans from its last position before
// falling back to a full binary search.
const hintScanWindow = 4

// Cursor is a stateful line lookup that exploits mostly-monotonic query
// times: when the new time lands near the previous line it scans a few steps
// forward or backward instead of searching the whole document.
type Cursor struct {
	doc   *Document
	index int
}

// NewCursor creates a cursor positioned before the first line.
func (d *Document) NewCursor() *Cursor {
	return &Cursor{doc: d, index: -1}
}

// Seek returns the index of the line active at or before t, updating the
// cursor position.
func (c *Cursor) Seek(t time.Duration) int {
	lines := c.doc.Lines
	if len(lines) == 0 {
		return -1
	}

	if c.index < 0 || c.index >= len(lines) {
		c.index = c.doc.LineIndexAt(t)
		return c.index
	}

	if idx, ok := c.scanNear(t); ok {
		c.index = idx
		return idx
	}

	c.index = c.doc.LineIndexAt(t)
	return c.index
}

func (c *Cursor) scanNear(t time.Duration) (int, bool) {
	lines := c.doc.Lines
	idx := c.index

	if lines[idx].Timestamp <= t {
		// Forward scan: advance while the next line has started.
		for step := 0; step < hintScanWindow; step++ {
			if idx+1 >= len(lines) || lines[idx+1].Timestamp > t {
				return idx, true
			}
			idx++
		}
		return 0, false
	}

	// Backward scan: retreat while the current line starts after t.
	for step := 0; step < hintScanWindow; step++ {
		if idx == 0 {
			return 0, true
		}
		idx--
		if lines[idx].Timestamp <= t {
			return idx, true
		}
	}
	return 0, false
}
