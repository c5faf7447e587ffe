package decoder

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"firestige.xyz/tracekit/internal/core"
)

// lookupCharset maps a configured charset name to an encoding. UTF-8 maps to nil,
// meaning the payload is used as is.
func lookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "gbk", "cp936":
		return simplifiedchinese.GBK, nil
	case "gb18030":
		return simplifiedchinese.GB18030, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("%w: unsupported charset %q", core.ErrConfigInvalid, name)
	}
}

// decodeText converts a log payload to a Go string. Valid UTF-8 is passed through
// even when a legacy charset is configured, so mixed captures stay readable.
func decodeText(enc encoding.Encoding, payload []byte) string {
	if enc == nil || utf8.Valid(payload) {
		return string(payload)
	}
	out, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return string(payload)
	}
	return string(out)
}
