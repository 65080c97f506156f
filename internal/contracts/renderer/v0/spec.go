package v0

// Text2ImageSpec is the request body of POST /render/text2image on a remote
// render service. The service writes {output_base}.tif and {output_base}.box
// onto storage it shares with the worker.
type Text2ImageSpec struct {
	Text       string  `json:"text"`
	Font       string  `json:"font"`
	OutputBase string  `json:"output_base"`
	Options    Options `json:"options"`
}

// Options mirrors the text2image flags tessgen sets.
type Options struct {
	PointSize   int     `json:"ptsize"`
	Leading     int     `json:"leading"`
	CharSpacing float64 `json:"char_spacing"`
	Exposure    int     `json:"exposure"`
	Resolution  int     `json:"resolution"`
	FontsDir    string  `json:"fonts_dir,omitempty"`
}
