package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	CharsetUTF8        = "UTF-8"
	CharsetUTF16LE     = "UTF-16LE"
	CharsetUTF16BE     = "UTF-16BE"
	CharsetWindows1252 = "windows-1252"
	CharsetISO88599    = "ISO-8859-9"
	CharsetISO885915   = "ISO-8859-15"
)

const sniffLen = 4096

var boms = []struct {
	prefix  []byte
	charset string
}{
	{[]byte{0xEF, 0xBB, 0xBF}, CharsetUTF8},
	{[]byte{0xFF, 0xFE}, CharsetUTF16LE},
	{[]byte{0xFE, 0xFF}, CharsetUTF16BE},
}

// decoders maps the chardet names we trust to their decoders. Anything else
// falls back to Windows-1252, the usual encoding of spreadsheet CSV exports.
var decoders = map[string]encoding.Encoding{
	"ISO-8859-1":       charmap.Windows1252,
	CharsetWindows1252: charmap.Windows1252,
	CharsetISO88599:    charmap.ISO8859_9,
	CharsetISO885915:   charmap.ISO8859_15,
}

// Decode sniffs the charset of a statement file and returns a reader yielding
// UTF-8 together with the detected charset name.
//
// A byte order mark wins; otherwise valid UTF-8 is passed through, then
// chardet is consulted, then Windows-1252 is assumed.
func Decode(r io.Reader) (io.Reader, string, error) {
	br := bufio.NewReaderSize(r, sniffLen)

	buf, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, "", fmt.Errorf("peek: %w", err)
	}

	for _, bom := range boms {
		if !bytes.HasPrefix(buf, bom.prefix) {
			continue
		}

		switch bom.charset {
		case CharsetUTF8:
			_, _ = br.Discard(len(bom.prefix))
			return br, CharsetUTF8, nil
		case CharsetUTF16LE:
			return transform.NewReader(br, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()), bom.charset, nil
		case CharsetUTF16BE:
			return transform.NewReader(br, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()), bom.charset, nil
		}
	}

	if validUTF8Prefix(buf) {
		return br, CharsetUTF8, nil
	}

	if res, err := chardet.NewTextDetector().DetectBest(buf); err == nil {
		if res.Charset == CharsetUTF8 {
			return br, CharsetUTF8, nil
		}

		if enc, ok := decoders[res.Charset]; ok {
			return transform.NewReader(br, enc.NewDecoder()), res.Charset, nil
		}
	}

	return transform.NewReader(br, charmap.Windows1252.NewDecoder()), CharsetWindows1252, nil
}

// validUTF8Prefix is utf8.Valid tolerating a rune cut at the end of the sniffed window.
func validUTF8Prefix(buf []byte) bool {
	if utf8.Valid(buf) {
		return true
	}

	for i := 1; i < utf8.UTFMax && i <= len(buf); i++ {
		if utf8.Valid(buf[:len(buf)-i]) && !utf8.FullRune(buf[len(buf)-i:]) {
			return true
		}
	}

	return false
}
