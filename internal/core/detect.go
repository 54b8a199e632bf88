package core

// detect.go works out how to read a delimited text file nobody described:
// byte order marks first, then filename profiles, then the delimiter that
// appears a consistent number of times on the first lines, then a static
// fallback of encodings and delimiters. The result is an ordered list of
// ParsingAttempts that handlers try until one passes the validation gate.

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/nexusaudit/internal/core/tables"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// Encoding names used in attempts and profiles.
const (
	EncUTF8        = "utf-8"
	EncUTF16LE     = "utf-16le"
	EncUTF16BE     = "utf-16be"
	EncUTF32LE     = "utf-32le"
	EncUTF32BE     = "utf-32be"
	EncWindows1252 = "windows-1252"
	EncISO88591    = "iso-8859-1"
)

// Attempt sources, in the order they are generated.
const (
	SourceBOM      = "bom"
	SourceProfile  = "profile"
	SourceDetected = "detected"
	SourceFallback = "fallback"
)

// Delimiters are the candidate field separators, in tie-break order.
var Delimiters = []rune{';', ',', '\t', '|'}

// EncodingCandidates are tried for files without a byte order mark.
var EncodingCandidates = []string{EncUTF8, EncWindows1252, EncISO88591, EncUTF16LE}

// ErrDecode is returned when bytes are not valid in the requested encoding.
var ErrDecode = errors.New("encoding error")

var decoders = map[string]encoding.Encoding{
	EncUTF16LE:     xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM),
	EncUTF16BE:     xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM),
	EncUTF32LE:     utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM),
	EncUTF32BE:     utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM),
	EncWindows1252: charmap.Windows1252,
	EncISO88591:    charmap.ISO8859_1,
}

// boms is ordered so that the UTF-32LE mark is checked before its UTF-16LE prefix.
var boms = []struct {
	mark     []byte
	encoding string
}{
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, EncUTF32BE},
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, EncUTF32LE},
	{[]byte{0xFE, 0xFF}, EncUTF16BE},
	{[]byte{0xFF, 0xFE}, EncUTF16LE},
	{[]byte{0xEF, 0xBB, 0xBF}, EncUTF8},
}

// ParsingAttempt is one (encoding, delimiter, pre-transform) combination.
type ParsingAttempt struct {
	Encoding  string
	Delimiter rune
	Transform string
	Source    string
}

func (a ParsingAttempt) String() string {
	s := fmt.Sprintf("%s %s (%s)", a.Encoding, delimiterName(a.Delimiter), a.Source)
	if a.Transform != "" {
		s += " +" + a.Transform
	}
	return s
}

func (a ParsingAttempt) key() string {
	return a.Encoding + "|" + string(a.Delimiter) + "|" + a.Transform
}

// Apply decodes data with the attempt's encoding and runs its pre-transform.
func (a ParsingAttempt) Apply(data []byte) (string, error) {
	text, err := Decode(data, a.Encoding)
	if err != nil {
		return "", err
	}
	switch a.Transform {
	case tables.TransformNone:
	case tables.TransformDoubleSemicolon:
		text = strings.ReplaceAll(text, ";;", ";")
	default:
		return "", fmt.Errorf("unknown transform %q", a.Transform)
	}
	return text, nil
}

func delimiterName(d rune) string {
	switch d {
	case '\t':
		return `'\t'`
	default:
		return "'" + string(d) + "'"
	}
}

// DetectBOM returns the encoding announced by a byte order mark and the mark length.
func DetectBOM(data []byte) (string, int, bool) {
	for _, b := range boms {
		if bytes.HasPrefix(data, b.mark) {
			return b.encoding, len(b.mark), true
		}
	}
	return "", 0, false
}

// Decode converts data to a UTF-8 string, failing on any byte sequence that is
// not valid in enc. A leading BOM is removed. Single-byte encodings reject NUL
// bytes, which only appear when the file is really UTF-16 or UTF-32.
func Decode(data []byte, enc string) (string, error) {
	var text string
	switch enc {
	case EncUTF8:
		if bytes.IndexByte(data, 0) >= 0 {
			return "", fmt.Errorf("%w: NUL byte in %s text", ErrDecode, enc)
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: invalid %s sequence", ErrDecode, enc)
		}
		text = string(data)
	default:
		dec, ok := decoders[enc]
		if !ok {
			return "", fmt.Errorf("%w: unknown encoding %q", ErrDecode, enc)
		}
		if (enc == EncWindows1252 || enc == EncISO88591) && bytes.IndexByte(data, 0) >= 0 {
			return "", fmt.Errorf("%w: NUL byte in %s text", ErrDecode, enc)
		}
		out, err := dec.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrDecode, enc, err)
		}
		if bytes.ContainsRune(out, utf8.RuneError) {
			return "", fmt.Errorf("%w: invalid %s sequence", ErrDecode, enc)
		}
		text = string(out)
	}
	return strings.TrimPrefix(text, "\ufeff"), nil
}

// SampleLines returns up to n non-empty lines from the start of text.
func SampleLines(text string, n int) []string {
	lines := make([]string, 0, n)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == n {
			break
		}
	}
	return lines
}

// DetectDelimiter picks the candidate that appears the same non-zero number of
// times on every sampled line, preferring the highest count. Ties go to the
// earlier candidate in Delimiters.
func DetectDelimiter(lines []string) (rune, bool) {
	if len(lines) == 0 {
		return 0, false
	}

	var best rune
	bestCount := 0
	for _, d := range Delimiters {
		sep := string(d)
		count := strings.Count(lines[0], sep)
		if count == 0 {
			continue
		}
		consistent := true
		for _, line := range lines[1:] {
			if strings.Count(line, sep) != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best, bestCount = d, count
		}
	}
	return best, bestCount > 0
}

// Detector builds ParsingAttempts for delimited text files.
type Detector struct {
	tables      *tables.Tables
	sampleLines int
	logger      *slog.Logger
}

// NewDetector creates a detector sampling sampleLines lines (default 10).
func NewDetector(t *tables.Tables, sampleLines int, logger *slog.Logger) *Detector {
	if sampleLines <= 0 {
		sampleLines = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{tables: t, sampleLines: sampleLines, logger: logger}
}

// Attempts returns the ordered, de-duplicated attempts for a file:
// BOM, filename profiles, detected delimiter, static fallback.
func (d *Detector) Attempts(name string, data []byte) []ParsingAttempt {
	var out []ParsingAttempt
	seen := make(map[string]bool)
	add := func(a ParsingAttempt) {
		if !seen[a.key()] {
			seen[a.key()] = true
			out = append(out, a)
		}
	}

	if enc, _, ok := DetectBOM(data); ok {
		if text, err := Decode(data, enc); err != nil {
			d.logger.Warn("byte order mark does not match content, using fallback chain",
				"file", name, "encoding", enc, "error", err)
		} else {
			detected, found := DetectDelimiter(SampleLines(text, d.sampleLines))
			if found {
				add(ParsingAttempt{Encoding: enc, Delimiter: detected, Source: SourceBOM})
			}
			for _, delim := range Delimiters {
				add(ParsingAttempt{Encoding: enc, Delimiter: delim, Source: SourceBOM})
			}
		}
	}

	if d.tables != nil {
		for _, p := range d.tables.ProfilesFor(name) {
			add(ParsingAttempt{Encoding: p.Encoding, Delimiter: p.Delim(), Transform: p.Transform, Source: SourceProfile})
		}
	}

	// Delimiters are ASCII in every candidate encoding, so the raw bytes can be sampled directly.
	if detected, ok := DetectDelimiter(SampleLines(string(data), d.sampleLines)); ok {
		for _, enc := range EncodingCandidates {
			add(ParsingAttempt{Encoding: enc, Delimiter: detected, Source: SourceDetected})
		}
	} else {
		d.logger.Debug("no consistent delimiter in sample", "file", name)
	}

	for _, enc := range EncodingCandidates {
		for _, delim := range Delimiters {
			add(ParsingAttempt{Encoding: enc, Delimiter: delim, Source: SourceFallback})
		}
	}
	add(ParsingAttempt{Encoding: EncUTF8, Delimiter: ';', Transform: tables.TransformDoubleSemicolon, Source: SourceFallback})
	add(ParsingAttempt{Encoding: EncISO88591, Delimiter: ';', Transform: tables.TransformDoubleSemicolon, Source: SourceFallback})

	return out
}
