package reader

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Charset decodes character data stored in a table's code page
type Charset struct {
	Name string
	enc  encoding.Encoding
}

var codePages = map[int]*charmap.Charmap{
	437:  charmap.CodePage437,
	850:  charmap.CodePage850,
	852:  charmap.CodePage852,
	855:  charmap.CodePage855,
	858:  charmap.CodePage858,
	860:  charmap.CodePage860,
	862:  charmap.CodePage862,
	863:  charmap.CodePage863,
	865:  charmap.CodePage865,
	866:  charmap.CodePage866,
	874:  charmap.Windows874,
	1250: charmap.Windows1250,
	1251: charmap.Windows1251,
	1252: charmap.Windows1252,
	1253: charmap.Windows1253,
	1254: charmap.Windows1254,
	1255: charmap.Windows1255,
	1256: charmap.Windows1256,
	1257: charmap.Windows1257,
	1258: charmap.Windows1258,
}

var namedCharsets = map[string]encoding.Encoding{
	"utf8":        unicode.UTF8,
	"utf-8":       unicode.UTF8,
	"latin1":      charmap.ISO8859_1,
	"iso-8859-1":  charmap.ISO8859_1,
	"iso-8859-2":  charmap.ISO8859_2,
	"iso-8859-5":  charmap.ISO8859_5,
	"iso-8859-15": charmap.ISO8859_15,
	"koi8-r":      charmap.KOI8R,
	"koi8-u":      charmap.KOI8U,
	"macintosh":   charmap.Macintosh,
}

// CharsetForCodePage returns the charset for a declared code page; 0 selects the default
func CharsetForCodePage(cp int) (*Charset, error) {
	if cp == 0 {
		cp = defaultCodePage
	}
	cm, ok := codePages[cp]
	if !ok {
		return nil, fmt.Errorf("unsupported code page %d", cp)
	}
	return &Charset{Name: fmt.Sprintf("cp%d", cp), enc: cm}, nil
}

// LookupCharset resolves a charset name such as cp1252, windows-1251, 437 or utf-8
func LookupCharset(name string) (*Charset, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := namedCharsets[n]; ok {
		return &Charset{Name: n, enc: enc}, nil
	}
	for _, prefix := range []string{"cp", "windows-", "ibm", "dos-"} {
		if strings.HasPrefix(n, prefix) {
			n = strings.TrimPrefix(n, prefix)
			break
		}
	}
	cp, err := strconv.Atoi(n)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q", name)
	}
	return CharsetForCodePage(cp)
}

// Decode converts code page bytes to a UTF-8 string
func (c *Charset) Decode(b []byte) (string, error) {
	if c == nil || c.enc == nil {
		return string(b), nil
	}
	if c.enc == unicode.UTF8 && utf8.Valid(b) {
		return string(b), nil
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s text: %w", c.Name, err)
	}
	return string(out), nil
}

// Encode converts a UTF-8 string to code page bytes
func (c *Charset) Encode(s string) ([]byte, error) {
	if c == nil || c.enc == nil {
		return []byte(s), nil
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode %s text: %w", c.Name, err)
	}
	return out, nil
}
