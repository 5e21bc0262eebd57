package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultLanguage is assigned to every channel until stream enrichment reports
// the provider's default audio language.
const DefaultLanguage = "ru_RU"

// Channel is one purchased live TV channel.
// ID is the provider's opaque channel id and the registry key; it doubles as
// tvg-id in the playlist and as the channel id in the XMLTV listing.
type Channel struct {
	ID       string    `json:"id"`
	Number   int       `json:"number"`
	Title    string    `json:"title"`
	Groups   []string  `json:"groups"`
	Logo     string    `json:"logo"`
	Language string    `json:"language"`
	URL      string    `json:"url,omitempty"` // empty until a stream was selected
	Programs []Program `json:"programs,omitempty"`
}

// Program is one scheduled broadcast. Start and Stop are Unix epoch seconds.
type Program struct {
	ChannelID string   `json:"channel_id"`
	Start     int64    `json:"start"`
	Stop      int64    `json:"stop"`
	Title     string   `json:"title"`
	Desc      string   `json:"desc"`
	Category  []string `json:"category"`
	Icon      string   `json:"icon,omitempty"`
}

// HasStream reports whether stream enrichment committed a URL.
func (c *Channel) HasStream() bool {
	return c.URL != ""
}

// AddPrograms appends programs to the channel's guide.
func (c *Channel) AddPrograms(programs ...Program) {
	c.Programs = append(c.Programs, programs...)
}

// Registry holds channels keyed by ID in the order the provider listed them.
// It is owned by a single goroutine; nothing here is synchronized.
type Registry struct {
	order []string
	byID  map[string]*Channel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Channel)}
}

// Put stores ch. A channel whose ID is already present replaces the earlier
// record but keeps its position. Put reports whether the ID was new.
func (r *Registry) Put(ch *Channel) bool {
	if _, ok := r.byID[ch.ID]; ok {
		r.byID[ch.ID] = ch
		return false
	}
	r.order = append(r.order, ch.ID)
	r.byID[ch.ID] = ch
	return true
}

// Get returns the channel with id, or nil.
func (r *Registry) Get(id string) *Channel {
	return r.byID[id]
}

// Len returns the number of channels.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Channels returns the channels in insertion order. The pointers are shared
// with the registry so enrichment can update records in place.
func (r *Registry) Channels() []*Channel {
	if r == nil {
		return nil
	}
	out := make([]*Channel, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Stats returns the number of programs across all channels and the number of
// channels with a stream URL.
func (r *Registry) Stats() (programs, withStream int) {
	for _, ch := range r.Channels() {
		programs += len(ch.Programs)
		if ch.HasStream() {
			withStream++
		}
	}
	return programs, withStream
}

// MarshalJSON renders the registry as an ordered JSON array.
func (r *Registry) MarshalJSON() ([]byte, error) {
	channels := r.Channels()
	if channels == nil {
		channels = []*Channel{}
	}
	return json.Marshal(channels)
}

// Save writes the registry to path as indented JSON using a temp-file-then-rename
// strategy so readers never see a partially-written file.
func (r *Registry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".channels-*.json.tmp")
	if err != nil {
		return fmt.Errorf("registry save: create temp: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("registry save: write: %w", writeErr)
		}
		return fmt.Errorf("registry save: close: %w", closeErr)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry save: rename: %w", err)
	}
	return nil
}

// JoinGroups renders a group list the way playlist consumers expect it in group-title.
func JoinGroups(groups []string) string {
	return strings.Join(groups, ";")
}
