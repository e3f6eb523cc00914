package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.senan.xyz/taglib"
)

var leadingIntegerPattern = regexp.MustCompile(`\d+`)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

var replayGainPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)

// Extensions taglib is known to parse. Anything else fails extraction with
// ReasonUnsupportedFormat instead of ReasonCorruptFile.
var taglibExtensions = map[string]struct{}{
	".aac":  {},
	".aif":  {},
	".aiff": {},
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".ogg":  {},
	".opus": {},
	".wav":  {},
	".wma":  {},
}

// TagLibExtractor reads metadata through taglib. It is the production
// Extractor implementation.
type TagLibExtractor struct {
	artistSeparators []string
	genreSeparators  []string
}

// NewTagLibExtractor creates an extractor with the configured artist/genre
// split separators.
func NewTagLibExtractor(artistSeparators, genreSeparators []string) *TagLibExtractor {
	return &TagLibExtractor{
		artistSeparators: artistSeparators,
		genreSeparators:  genreSeparators,
	}
}

// Extract reads the file's tags and audio properties.
func (e *TagLibExtractor) Extract(path string) (*Extraction, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, &ExtractionError{Reason: classifyFailure(path), Err: err}
	}

	extraction := &Extraction{
		Title:        firstTagValue(tags, taglib.Title, "TITLE"),
		Artists:      SplitNames(tagValues(tags, taglib.Artist, "ARTIST"), e.artistSeparators),
		AlbumArtists: SplitNames(tagValues(tags, taglib.AlbumArtist, "ALBUMARTIST"), e.artistSeparators),
		Album:        firstTagValue(tags, taglib.Album, "ALBUM"),
		Genres:       SplitNames(tagValues(tags, taglib.Genre, "GENRE"), e.genreSeparators),
		Lyrics:       firstTagValue(tags, "LYRICS", "UNSYNCEDLYRICS"),
	}

	if extraction.Title == "" {
		extraction.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if track := parseNumericTag(firstTagValue(tags, taglib.TrackNumber, "TRACKNUMBER")); track != nil {
		extraction.TrackNumber = int32(*track)
	}
	if disc := parseNumericTag(firstTagValue(tags, taglib.DiscNumber, "DISCNUMBER")); disc != nil {
		extraction.DiscNumber = int32(*disc)
	}
	if year := parseYearTag(firstTagValue(tags, taglib.Date, "DATE", "YEAR", "ORIGINALDATE")); year != nil {
		extraction.Year = int32(*year)
	}
	if gain := parseReplayGain(firstTagValue(tags, "REPLAYGAIN_TRACK_GAIN")); gain != nil {
		extraction.TrackGain = gain
	}

	properties, propertiesErr := taglib.ReadProperties(path)
	if propertiesErr == nil {
		if properties.Length > 0 {
			extraction.DurationMs = properties.Length.Milliseconds()
		}
		extraction.HasPicture = len(properties.Images) > 0
	}

	return extraction, nil
}

// EmbeddedPicture returns the first embedded picture's bytes.
func (e *TagLibExtractor) EmbeddedPicture(path string) ([]byte, error) {
	data, err := taglib.ReadImage(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func classifyFailure(path string) FailureReason {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := taglibExtensions[ext]; !ok {
		return ReasonUnsupportedFormat
	}
	return ReasonCorruptFile
}

func tagValues(tags map[string][]string, keys ...string) []string {
	for _, key := range keys {
		values, ok := tags[key]
		if !ok {
			continue
		}
		var trimmed []string
		for _, value := range values {
			if v := strings.TrimSpace(value); v != "" {
				trimmed = append(trimmed, v)
			}
		}
		if len(trimmed) > 0 {
			return trimmed
		}
	}

	return nil
}

func firstTagValue(tags map[string][]string, keys ...string) string {
	values := tagValues(tags, keys...)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func parseNumericTag(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	match := leadingIntegerPattern.FindString(trimmed)
	if match == "" {
		return nil
	}

	parsed, err := strconv.Atoi(match)
	if err != nil || parsed <= 0 {
		return nil
	}

	return &parsed
}

func parseYearTag(value string) *int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	match := yearPattern.FindString(trimmed)
	if match == "" {
		if fallback := parseNumericTag(trimmed); fallback != nil {
			if *fallback >= 1000 && *fallback <= 3000 {
				return fallback
			}
		}
		return nil
	}

	parsed, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}

	return &parsed
}

func parseReplayGain(value string) *float64 {
	match := replayGainPattern.FindString(value)
	if match == "" {
		return nil
	}

	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}

	return &parsed
}
