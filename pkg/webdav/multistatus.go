package webdav

import (
	"bytes"
	"encoding/xml"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// namespacePrefix matches the prefix of a start or end tag, as in <D:href>.
var namespacePrefix = regexp.MustCompile(`(</?)\w+:`)

type multistatus struct {
	XMLName   xml.Name `xml:"multistatus"`
	Responses []struct {
		Href string `xml:"href"`
	} `xml:"response"`
}

// parseMultistatus extracts child names from a PROPFIND body. prefix is the
// path of the listed collection; its own entry is dropped.
func parseMultistatus(body []byte, prefix string) ([]string, error) {
	body = namespacePrefix.ReplaceAll(body, []byte("$1"))
	if err := checkDocument(body); err != nil {
		return nil, err
	}

	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, err
	}

	self := strings.TrimSuffix(prefix, "/")
	names := make([]string, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		href := hrefPath(r.Href)
		trimmed := strings.TrimSuffix(href, "/")
		if trimmed == self {
			continue
		}

		var name string
		if strings.HasPrefix(trimmed, self+"/") {
			name = strings.TrimPrefix(trimmed, self+"/")
		} else {
			name = path.Base(trimmed)
		}
		if name == "" || name == "." || name == "/" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// checkDocument scans up to the root element. A body holding nothing but
// whitespace, declarations or comments is empty; text before the root
// element is a syntax error.
func checkDocument(body []byte) error {
	d := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return ErrEmptyPropfind
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			return nil
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				line, _ := d.InputPos()
				return &xml.SyntaxError{Msg: "non-whitespace before first tag", Line: line}
			}
		}
	}
}

// hrefPath returns the unescaped path of an href, which may be an
// absolute URL or a percent-encoded path.
func hrefPath(href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return u.Path
}
