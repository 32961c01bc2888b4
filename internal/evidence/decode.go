package evidence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Decode errors.
var (
	ErrEmptyPayload   = errors.New("empty payload")
	ErrBinaryPayload  = errors.New("payload is not text")
	ErrMalformedData  = errors.New("malformed data URL")
	ErrMalformedBytes = errors.New("malformed base64 payload")
)

// Payload is a decoded file payload.
type Payload struct {
	Text string
	// ContentType is the declared file type, or the data URL media type
	// when none was declared.
	ContentType string
}

// DecodePayload decodes a file item's payload.
//
// data: URLs are decoded per their ";base64" flag. Any other payload is
// tried as standard base64 and used when it decodes to printable UTF-8;
// otherwise it is taken as literal text.
func DecodePayload(data, declaredType string) (Payload, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return Payload{}, ErrEmptyPayload
	}

	if strings.HasPrefix(data, "data:") {
		return decodeDataURL(data, declaredType)
	}

	if b, err := base64.StdEncoding.DecodeString(stripLineBreaks(data)); err == nil && isText(b) {
		return Payload{Text: string(b), ContentType: declaredType}, nil
	}

	if !isText([]byte(data)) {
		return Payload{}, ErrBinaryPayload
	}
	return Payload{Text: data, ContentType: declaredType}, nil
}

// decodeDataURL decodes data:[<mediatype>][;base64],<data>.
func decodeDataURL(data, declaredType string) (Payload, error) {
	header, body, ok := strings.Cut(strings.TrimPrefix(data, "data:"), ",")
	if !ok {
		return Payload{}, fmt.Errorf("%w: missing comma", ErrMalformedData)
	}

	params := strings.Split(header, ";")
	mediaType := strings.TrimSpace(params[0])
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}

	var raw []byte
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(stripLineBreaks(body))
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformedBytes, err)
		}
		raw = b
	} else {
		s, err := url.PathUnescape(body)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformedData, err)
		}
		raw = []byte(s)
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return Payload{}, ErrEmptyPayload
	}
	if !isText(raw) {
		return Payload{}, ErrBinaryPayload
	}

	contentType := declaredType
	if contentType == "" {
		contentType = mediaType
	}
	return Payload{Text: string(raw), ContentType: contentType}, nil
}

// isText reports whether b is non-empty UTF-8 without control characters
// other than tab, CR and LF.
func isText(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}

func stripLineBreaks(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}
