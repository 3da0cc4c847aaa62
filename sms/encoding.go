package sms

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// Encoding is the alphabet a body is carried in on the network.
type Encoding int

const (
	// EncodingGSM7 is the GSM 03.38 default alphabet, one septet per
	// character and two for extension-table characters.
	EncodingGSM7 Encoding = iota + 1
	// EncodingUCS2 carries UTF-16 code units; characters outside the BMP
	// take two.
	EncodingUCS2
)

// Default single-unit capacities for transports that do not know better.
const (
	DefaultGSM7Capacity = 160
	DefaultUCS2Capacity = 70
)

// ErrCharacterTooWide is returned by Split when one character needs more
// units than a part can hold.
var ErrCharacterTooWide = errors.New("sms: character wider than segment capacity")

// ErrNoCapacity is returned when a transport reports no usable capacity.
var ErrNoCapacity = errors.New("sms: transport reported no segmentation capacity")

func (e Encoding) String() string {
	switch e {
	case EncodingGSM7:
		return "gsm7"
	case EncodingUCS2:
		return "ucs2"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

const (
	gsm7Basic     = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"
	gsm7Extension = "\f^{}\\[~]|€"
)

var gsm7Widths = buildGSM7Widths()

func buildGSM7Widths() map[rune]int {
	widths := make(map[rune]int, 128+len(gsm7Extension))
	for _, r := range gsm7Basic {
		widths[r] = 1
	}
	for _, r := range gsm7Extension {
		widths[r] = 2
	}
	return widths
}

// EncodingOf returns EncodingGSM7 when every character of body is in the GSM
// default alphabet or its extension table, and EncodingUCS2 otherwise.
func EncodingOf(body string) Encoding {
	for _, r := range body {
		if _, ok := gsm7Widths[r]; !ok {
			return EncodingUCS2
		}
	}
	return EncodingGSM7
}

// Length returns the number of encoding units body occupies.
func Length(body string, enc Encoding) int {
	n := 0
	for _, r := range body {
		n += runeWidth(r, enc)
	}
	return n
}

func runeWidth(r rune, enc Encoding) int {
	if enc == EncodingGSM7 {
		if w, ok := gsm7Widths[r]; ok {
			return w
		}
		// not representable; counted as an escape pair so callers that force
		// GSM7 still get a conservative size
		return 2
	}
	if w := utf16.RuneLen(r); w > 0 {
		return w
	}
	return 1
}

// Split cuts body into ordered parts of at most capacity units each. Parts
// concatenate back to body exactly; a character is never divided across
// parts. A body that fits is returned as a single part, including "".
func Split(body string, enc Encoding, capacity int) ([]string, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d for %s", ErrNoCapacity, capacity, enc)
	}
	if Length(body, enc) <= capacity {
		return []string{body}, nil
	}

	parts := make([]string, 0, Length(body, enc)/capacity+1)
	start, used := 0, 0
	for i, r := range body {
		w := runeWidth(r, enc)
		if w > capacity {
			return nil, fmt.Errorf("%w: %q needs %d units, capacity is %d", ErrCharacterTooWide, r, w, capacity)
		}
		if used+w > capacity {
			parts = append(parts, body[start:i])
			start, used = i, 0
		}
		used += w
	}
	return append(parts, body[start:]), nil
}
