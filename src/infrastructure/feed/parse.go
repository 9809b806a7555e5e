package feed

import (
	"encoding/xml"
	"errors"
	"strings"
	"time"
)

// document mirrors the rss/channel/item structure. Every child element of
// an item decodes into a generic field list so that inconsistent provider
// tag names and namespaces normalize uniformly, and a channel with a
// single item decodes the same way as one with many.
type document struct {
	XMLName xml.Name `xml:"rss"`
	Channel *channel `xml:"channel"`
}

type channel struct {
	Title string `xml:"title"`
	Items []item `xml:"item"`
}

type item struct {
	Fields []field `xml:",any"`
}

type field struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// first returns the trimmed value of the first present, non-empty field
// among the given local names. Provider namespaces are ignored: a
// jobicy:company element matches "company".
func (it item) first(names ...string) string {
	for _, name := range names {
		for _, f := range it.Fields {
			if strings.EqualFold(f.XMLName.Local, name) {
				if v := strings.TrimSpace(f.Value); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// parseDocument decodes the feed body and validates the rss.channel
// structure is present.
func parseDocument(body []byte) (*channel, error) {
	var doc document
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Channel == nil {
		return nil, errors.New("invalid RSS structure: missing rss.channel")
	}
	return doc.Channel, nil
}

// dateLayouts are tried in order when parsing item publish dates.
// Providers disagree on formats; anything unparsable becomes absent.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
