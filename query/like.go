package query

import "github.com/vegasq/pxcat/pxerr"

// likeChar is one pattern position: a literal rune or the _ wildcard
type likeChar struct {
	r   rune
	any bool
}

// likePattern is a LIKE pattern split into segments by unescaped %
type likePattern struct {
	segments [][]likeChar
}

// compileLike parses a LIKE pattern. % matches any sequence of characters,
// _ matches any single character, and escape (when non-zero) makes the
// following character literal.
func compileLike(pattern string, escape rune) (*likePattern, error) {
	p := &likePattern{}
	var seg []likeChar
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escape != 0 && r == escape:
			if i+1 == len(runes) {
				return nil, pxerr.Type("LIKE pattern %q ends with the escape character", pattern)
			}
			i++
			seg = append(seg, likeChar{r: runes[i]})
		case r == '%':
			p.segments = append(p.segments, seg)
			seg = nil
		case r == '_':
			seg = append(seg, likeChar{any: true})
		default:
			seg = append(seg, likeChar{r: r})
		}
	}
	p.segments = append(p.segments, seg)
	return p, nil
}

// match reports whether str matches the pattern
func (p *likePattern) match(str string) bool {
	s := []rune(str)
	segs := p.segments

	// no % at all: the single segment must cover the whole string
	if len(segs) == 1 {
		return len(s) == len(segs[0]) && segmentAt(s, 0, segs[0])
	}

	first, last := segs[0], segs[len(segs)-1]
	if !segmentAt(s, 0, first) {
		return false
	}
	start := len(first)
	end := len(s) - len(last)
	if end < start || !segmentAt(s, end, last) {
		return false
	}

	// middle segments take their leftmost match
	for _, seg := range segs[1 : len(segs)-1] {
		pos := findSegmentMatch(s[start:end], seg)
		if pos < 0 {
			return false
		}
		start += pos + len(seg)
	}
	return true
}

// segmentAt reports whether seg matches s at offset off
func segmentAt(s []rune, off int, seg []likeChar) bool {
	if off < 0 || off+len(seg) > len(s) {
		return false
	}
	for j, c := range seg {
		if !c.any && s[off+j] != c.r {
			return false
		}
	}
	return true
}

// findSegmentMatch finds the position where a segment matches in the string
// Returns -1 if no match found
func findSegmentMatch(s []rune, seg []likeChar) int {
	for i := 0; i+len(seg) <= len(s); i++ {
		if segmentAt(s, i, seg) {
			return i
		}
	}
	return -1
}
