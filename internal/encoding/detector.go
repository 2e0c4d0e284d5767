// Package encoding guesses the character set of uploaded log files and
// decodes them to UTF-8 text.
package encoding

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/yildizm/logsift/internal/common"
)

// DefaultCharset is assumed when detection yields nothing usable
const DefaultCharset = "utf-8"

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// chardet reports a few names htmlindex does not know
var charsetAliases = map[string]string{
	"gb-18030":     "gb18030",
	"iso-8859-8-i": "iso-8859-8",
	"ibm420_ltr":   "",
	"ibm420_rtl":   "",
	"ibm424_ltr":   "",
	"ibm424_rtl":   "",
}

// Detector guesses text encodings
type Detector struct {
	text *chardet.Detector
}

// NewDetector creates a detector backed by chardet's text heuristics
func NewDetector() *Detector {
	return &Detector{text: chardet.NewTextDetector()}
}

// Detect returns the lower-cased charset name of data
func (d *Detector) Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return "utf-8"
	case bytes.HasPrefix(data, bomUTF16LE):
		return "utf-16le"
	case bytes.HasPrefix(data, bomUTF16BE):
		return "utf-16be"
	}

	if len(data) == 0 || utf8.Valid(data) {
		return DefaultCharset
	}

	result, err := d.text.DetectBest(data)
	if err != nil || result == nil || result.Charset == "" {
		return DefaultCharset
	}

	name := strings.ToLower(result.Charset)
	if alias, ok := charsetAliases[name]; ok {
		if alias == "" {
			return DefaultCharset
		}
		name = alias
	}
	return name
}

// Decode converts data to UTF-8 text using the detected charset.
// Binary content and undecodable bytes are rejected with an InputError.
func (d *Detector) Decode(data []byte) (string, error) {
	charset := d.Detect(data)

	enc, err := lookup(charset)
	if err != nil {
		return "", common.NewInputError(fmt.Sprintf("unsupported encoding %q", charset), err)
	}

	var text string
	if enc == nil {
		if !utf8.Valid(data) {
			return "", common.NewInputError("content is not valid utf-8", nil)
		}
		text = string(bytes.TrimPrefix(data, bomUTF8))
	} else {
		decoded, _, err := transform.Bytes(enc.NewDecoder(), data)
		if err != nil {
			return "", common.NewInputError(fmt.Sprintf("cannot decode content as %s", charset), err)
		}
		text = string(decoded)
	}

	if strings.ContainsRune(text, 0) {
		return "", common.NewInputError("content looks binary (NUL bytes)", nil)
	}
	return text, nil
}

// lookup resolves a charset name. A nil encoding means plain UTF-8.
func lookup(charset string) (encoding.Encoding, error) {
	switch charset {
	case "utf-8", "utf8", "ascii", "us-ascii":
		return nil, nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	}
	return htmlindex.Get(charset)
}
