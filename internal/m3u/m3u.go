// Package m3u renders the channel registry as an M3U-Plus playlist.
package m3u

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/snapetech/smotreshka-ripper/internal/catalog"
)

const (
	Header = "#EXTM3U"
	// LiveDuration marks an unbounded live stream.
	LiveDuration = -1
)

// Attr is one key="value" pair on an #EXTINF line.
type Attr struct {
	Key   string
	Value string
}

// Entry is one playlist item: the #EXTINF line and the URL line that follows.
type Entry struct {
	Duration int
	Attrs    []Attr
	Title    string
	URL      string
}

// EntryFor maps a channel to its playlist entry. Attribute order is fixed.
func EntryFor(ch *catalog.Channel) Entry {
	return Entry{
		Duration: LiveDuration,
		Attrs: []Attr{
			{"group-title", catalog.JoinGroups(ch.Groups)},
			{"tvg-chno", strconv.Itoa(ch.Number)},
			{"tvg-id", ch.ID},
			{"tvg-logo", ch.Logo},
			{"tvg-language", ch.Language},
		},
		Title: ch.Title,
		URL:   ch.URL,
	}
}

// WriteTo writes the two lines of e. Values are written verbatim.
func (e Entry) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString("#EXTINF:")
	b.WriteString(strconv.Itoa(e.Duration))
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(a.Value)
		b.WriteByte('"')
	}
	b.WriteByte(',')
	b.WriteString(e.Title)
	b.WriteByte('\n')
	b.WriteString(e.URL)
	b.WriteByte('\n')
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// Encode writes the playlist for every channel in registry order. Channels
// without a stream URL still get an entry with an empty URL line.
func Encode(w io.Writer, reg *catalog.Registry) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return err
	}
	for _, ch := range reg.Channels() {
		if _, err := EntryFor(ch).WriteTo(bw); err != nil {
			return err
		}
	}
	return bw.Flush()
}
