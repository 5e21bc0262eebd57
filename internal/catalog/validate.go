package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingField        = errors.New("attribute must be set")
	ErrMalformedTitle      = errors.New("malformed composite title")
	ErrEmptyCatalog        = errors.New("list of live channels is empty")
	ErrNoPurchasedChannels = errors.New("did not collect at least one purchased live channel")
)

// DataError reports a record that cannot be serialized safely. It is always
// fatal for a run: both output formats assume well-formed records.
type DataError struct {
	Record string // "channel", "program" or "catalog"
	ID     string // channel id when known
	Field  string
	Err    error
}

func (e *DataError) Error() string {
	var b strings.Builder
	b.WriteString(e.Record)
	if e.ID != "" {
		fmt.Fprintf(&b, " %q", e.ID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": `%s`", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *DataError) Unwrap() error { return e.Err }

func missing(record, id, field string) error {
	return &DataError{Record: record, ID: id, Field: field, Err: ErrMissingField}
}

// NewChannel builds a channel record. id, title and logo are required.
func NewChannel(id string, number int, title string, groups []string, logo string) (*Channel, error) {
	if strings.TrimSpace(id) == "" {
		return nil, missing("channel", "", "channel_id")
	}
	if title == "" {
		return nil, missing("channel", id, "title")
	}
	if logo == "" {
		return nil, missing("channel", id, "logo")
	}
	if groups == nil {
		groups = []string{}
	}
	return &Channel{
		ID:       id,
		Number:   number,
		Title:    title,
		Groups:   groups,
		Logo:     logo,
		Language: DefaultLanguage,
	}, nil
}

// ProgramFields carries the raw, possibly absent, values of one program as the
// provider returned them. nil means the provider omitted the field.
type ProgramFields struct {
	ChannelID string
	Start     *int64
	Stop      *int64
	Title     *string
	Desc      *string
	Category  []string
	Icon      string
}

// NewProgram validates f and builds the program record. Ordering of Start and
// Stop is not checked.
func NewProgram(f ProgramFields) (Program, error) {
	switch {
	case strings.TrimSpace(f.ChannelID) == "":
		return Program{}, missing("program", "", "channel_id")
	case f.Start == nil:
		return Program{}, missing("program", f.ChannelID, "start")
	case f.Stop == nil:
		return Program{}, missing("program", f.ChannelID, "stop")
	case f.Title == nil:
		return Program{}, missing("program", f.ChannelID, "title")
	case f.Desc == nil:
		return Program{}, missing("program", f.ChannelID, "desc")
	}
	category := make([]string, len(f.Category))
	copy(category, f.Category)
	return Program{
		ChannelID: f.ChannelID,
		Start:     *f.Start,
		Stop:      *f.Stop,
		Title:     *f.Title,
		Desc:      *f.Desc,
		Category:  category,
		Icon:      f.Icon,
	}, nil
}

// SplitTitle splits the provider's "<number>_<title>" composite on the first
// underscore. A missing separator or non-numeric prefix is a DataError.
func SplitTitle(composite string) (int, string, error) {
	num, title, ok := strings.Cut(composite, "_")
	if !ok {
		return 0, "", &DataError{Record: "channel", Field: "title", Err: fmt.Errorf("%w: %q has no separator", ErrMalformedTitle, composite)}
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return 0, "", &DataError{Record: "channel", Field: "title", Err: fmt.Errorf("%w: %q: %v", ErrMalformedTitle, composite, err)}
	}
	return n, title, nil
}
