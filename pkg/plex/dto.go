package plex

// APIResponse wraps the MediaContainer root every JSON endpoint returns.
type APIResponse struct {
	MediaContainer MediaContainer `json:"MediaContainer"`
}

type MediaContainer struct {
	Size              int         `json:"size"`
	MachineIdentifier string      `json:"machineIdentifier,omitempty"`
	Version           string      `json:"version,omitempty"`
	Directory         []Directory `json:"Directory,omitempty"`
	Metadata          []Metadata  `json:"Metadata,omitempty"`
}

// Directory is a library section.
type Directory struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Metadata is a media item: movie, show, season or episode.
type Metadata struct {
	RatingKey            string  `json:"ratingKey"`
	Key                  string  `json:"key"`
	GrandparentRatingKey string  `json:"grandparentRatingKey,omitempty"`
	Type                 string  `json:"type"`
	Title                string  `json:"title"`
	GrandparentTitle     string  `json:"grandparentTitle,omitempty"`
	Index                int     `json:"index,omitempty"`
	ParentIndex          int     `json:"parentIndex,omitempty"`
	ViewCount            int     `json:"viewCount,omitempty"`
	ViewOffset           int     `json:"viewOffset,omitempty"`
	LastViewedAt         int64   `json:"lastViewedAt,omitempty"`
	AddedAt              int64   `json:"addedAt,omitempty"`
	LibrarySectionID     int     `json:"librarySectionID,omitempty"`
	Media                []Media `json:"Media,omitempty"`
}

type Media struct {
	ID   int    `json:"id"`
	Part []Part `json:"Part,omitempty"`
}

type Part struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	File string `json:"file,omitempty"`
	Size int64  `json:"size,omitempty"`
}
