// Package xmltv renders the channel registry as an XMLTV listing.
package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
)

const (
	// TimeLayout is the XMLTV timestamp layout used for the root date and
	// programme boundaries.
	TimeLayout = "20060102150405 -0700"

	Declaration = `<?xml version="1.0" encoding="utf-8" ?>`
	Doctype     = `<!DOCTYPE tv SYSTEM "https://raw.githubusercontent.com/XMLTV/xmltv/refs/heads/master/xmltv.dtd">`
)

// Generator identifies the producing program on the <tv> root.
type Generator struct {
	Name string
	URL  string
}

// Encoder writes XMLTV documents. The zero value uses local time and the
// current clock.
type Encoder struct {
	Generator Generator
	Location  *time.Location
	Now       func() time.Time
}

type tvElem struct {
	XMLName       xml.Name        `xml:"tv"`
	Date          string          `xml:"date,attr"`
	GeneratorName string          `xml:"generator-info-name,attr"`
	GeneratorURL  string          `xml:"generator-info-url,attr"`
	Channels      []channelElem   `xml:"channel"`
	Programmes    []programmeElem `xml:"programme"`
}

type channelElem struct {
	ID          string   `xml:"id,attr"`
	DisplayName langText `xml:"display-name"`
	Icon        *icon    `xml:"icon"`
}

type programmeElem struct {
	Start    string     `xml:"start,attr"`
	Stop     string     `xml:"stop,attr"`
	Channel  string     `xml:"channel,attr"`
	Title    langText   `xml:"title"`
	Desc     langText   `xml:"desc"`
	Icon     *icon      `xml:"icon"`
	Category []langText `xml:"category"`
}

type langText struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

type icon struct {
	Src string `xml:"src,attr"`
}

func iconFor(src string) *icon {
	if src == "" {
		return nil
	}
	return &icon{Src: src}
}

func (e Encoder) location() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}

func (e Encoder) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// FormatTime renders epoch seconds in the encoder's location.
func (e Encoder) FormatTime(epoch int64) string {
	return time.Unix(epoch, 0).In(e.location()).Format(TimeLayout)
}

// document builds the element tree: every channel first, then the programmes
// of all channels, both in registry order.
func (e Encoder) document(reg *catalog.Registry) tvElem {
	doc := tvElem{
		Date:          e.now().In(e.location()).Format(TimeLayout),
		GeneratorName: e.Generator.Name,
		GeneratorURL:  e.Generator.URL,
	}
	channels := reg.Channels()
	for _, ch := range channels {
		doc.Channels = append(doc.Channels, channelElem{
			ID:          ch.ID,
			DisplayName: langText{Lang: ch.Language, Value: ch.Title},
			Icon:        iconFor(ch.Logo),
		})
	}
	for _, ch := range channels {
		for _, p := range ch.Programs {
			pe := programmeElem{
				Start:   e.FormatTime(p.Start),
				Stop:    e.FormatTime(p.Stop),
				Channel: p.ChannelID,
				Title:   langText{Lang: ch.Language, Value: p.Title},
				Desc:    langText{Lang: ch.Language, Value: p.Desc},
				Icon:    iconFor(p.Icon),
			}
			for _, c := range p.Category {
				pe.Category = append(pe.Category, langText{Lang: ch.Language, Value: c})
			}
			doc.Programmes = append(doc.Programmes, pe)
		}
	}
	return doc
}

// Encode writes the full document to w.
func (e Encoder) Encode(w io.Writer, reg *catalog.Registry) error {
	if _, err := io.WriteString(w, Declaration+"\n"+Doctype+"\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(e.document(reg)); err != nil {
		return fmt.Errorf("xmltv: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("xmltv: encode: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}
