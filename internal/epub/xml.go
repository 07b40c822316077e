package epub

import (
	"bytes"
	"encoding/xml"

	"golang.org/x/net/html/charset"
)

// decodeXML unmarshals an XML descriptor fetched from the network.
//
// A charset.NewReaderLabel is installed so documents declaring a non-UTF-8
// encoding in the XML prolog still decode. encoding/xml performs no DTD or
// external entity processing, so entity-expansion tricks in untrusted input
// fail to parse instead of expanding.
func decodeXML(content []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(stripBOM(content)))
	dec.CharsetReader = charset.NewReaderLabel
	return dec.Decode(v)
}

// stripBOM removes a leading UTF-8 BOM (0xEF 0xBB 0xBF), if present.
func stripBOM(content []byte) []byte {
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:]
	}
	return content
}
