package smotreshka

// Response shapes of the three data endpoints. Only the fields the ripper
// reads are declared; optional values are pointers so absence is visible.

// ChannelsResponse is GET /channels.
type ChannelsResponse struct {
	Channels []ChannelEntry `json:"channels"`
}

type ChannelEntry struct {
	ID   *string     `json:"id"`
	Info ChannelInfo `json:"info"`
}

type ChannelInfo struct {
	PurchaseInfo struct {
		Bought bool `json:"bought"`
	} `json:"purchaseInfo"`
	MetaInfo struct {
		Title  *string  `json:"title"` // "<number>_<title>"
		Genres []string `json:"genres"`
	} `json:"metaInfo"`
	MediaInfo MediaInfo `json:"mediaInfo"`
}

type MediaInfo struct {
	Thumbnails []Thumbnail `json:"thumbnails"`
}

type Thumbnail struct {
	URL string `json:"url"`
}

// FirstThumbnail returns the first thumbnail URL or "".
func (m MediaInfo) FirstThumbnail() string {
	if len(m.Thumbnails) == 0 {
		return ""
	}
	return m.Thumbnails[0].URL
}

// ProgramsResponse is GET /channels/{id}/programs.
type ProgramsResponse struct {
	Programs []ProgramEntry `json:"programs"`
}

type ProgramEntry struct {
	ScheduleInfo struct {
		Start *int64 `json:"start"`
		End   *int64 `json:"end"`
	} `json:"scheduleInfo"`
	MetaInfo struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	} `json:"metaInfo"`
	MediaInfo MediaInfo `json:"mediaInfo"`
}

// PlaybackInfoResponse is GET /playback-info/{id}.
type PlaybackInfoResponse struct {
	Languages []Language `json:"languages"`
}

type Language struct {
	ID         string      `json:"id"`
	Default    bool        `json:"default"`
	Renditions []Rendition `json:"renditions"`
}

type Rendition struct {
	ID      string `json:"id"`
	Default bool   `json:"default"`
	URL     string `json:"url"`
}
