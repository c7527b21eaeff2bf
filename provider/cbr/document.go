package cbr

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/sig-0/cbrates/storage/types"
)

var errMissingField = errors.New("missing field")

// valCurs is the raw feed document
type valCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Date    string   `xml:"Date,attr"`
	Valutes []valute `xml:"Valute"`
}

// valute is a single raw currency node
type valute struct {
	ID       string `xml:"ID,attr"`
	CharCode string `xml:"CharCode"`
	Nominal  string `xml:"Nominal"`
	Name     string `xml:"Name"`
	Value    string `xml:"Value"`
}

// Document is a parsed daily feed document
type Document struct {
	// Date is the effective date reported by the feed, if parsable
	Date time.Time

	nodes map[types.Currency]valute
}

// Parse parses the raw feed document.
// Structurally invalid documents yield a KindParse error
func Parse(body []byte) (*Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader

	var raw valCurs

	if err := dec.Decode(&raw); err != nil {
		return nil, types.NewError(types.KindParse, "malformed feed document", err)
	}

	doc := &Document{
		nodes: make(map[types.Currency]valute, len(raw.Valutes)),
	}

	if t, err := types.ParseDate(raw.Date); err == nil {
		doc.Date = t
	}

	for _, v := range raw.Valutes {
		code := types.Currency(strings.ToUpper(strings.TrimSpace(v.CharCode)))
		if code == "" {
			continue
		}

		doc.nodes[code] = v
	}

	return doc, nil
}

// Len returns the number of currency nodes in the document
func (d *Document) Len() int {
	return len(d.nodes)
}

// Lookup returns the typed node for the given currency code.
// A missing node yields a KindNotFound error, malformed fields a KindParse error
func (d *Document) Lookup(code types.Currency) (types.CurrencyNode, error) {
	v, ok := d.nodes[code]
	if !ok {
		return types.CurrencyNode{}, types.NewError(
			types.KindNotFound,
			fmt.Sprintf("currency node not found: %s", code),
			nil,
		)
	}

	value, err := parseValue(v.Value)
	if err != nil {
		return types.CurrencyNode{}, types.NewError(
			types.KindParse,
			fmt.Sprintf("invalid rate value for %s", code),
			err,
		)
	}

	nominal, err := parseNominal(v.Nominal)
	if err != nil {
		return types.CurrencyNode{}, types.NewError(
			types.KindParse,
			fmt.Sprintf("invalid nominal for %s", code),
			err,
		)
	}

	return types.CurrencyNode{
		Code:    code,
		Value:   value,
		Nominal: nominal,
	}, nil
}

// parseValue parses a feed decimal, which uses a comma as the decimal separator
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMissingField
	}

	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse value %q: %w", s, err)
	}

	if f <= 0 {
		return 0, fmt.Errorf("value %q is not positive", s)
	}

	return f, nil
}

// parseNominal parses the integer unit count a value applies to
func parseNominal(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMissingField
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unable to parse nominal %q: %w", s, err)
	}

	if n <= 0 {
		return 0, fmt.Errorf("nominal %d is not positive", n)
	}

	return n, nil
}

// charsetReader decodes the legacy encodings the feed is served in
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	case "koi8-r":
		return charmap.KOI8R.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}
