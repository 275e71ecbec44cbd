package export

// ExportRequest asks for the shots of a video as an edit decision list.
type ExportRequest struct {
	ProjectName string `json:"project_name"`
	Format      string `json:"format"`
	// OutputDir, when set, receives <project>.edl. Otherwise the EDL is returned inline.
	OutputDir string `json:"output_dir,omitempty"`
	// ShotIDs restricts the export to these shots, in timeline order.
	ShotIDs []string `json:"shot_ids,omitempty"`
	// Tags keeps shots carrying any of these tags.
	Tags []string `json:"tags,omitempty"`
}

// Clip is one EDL event.
type Clip struct {
	ShotID    string
	ClipName  string
	MediaPath string
	StartMs   int
	EndMs     int
	Tags      []string
}

type ExportResponse struct {
	Status       string   `json:"status"`
	Format       string   `json:"format"`
	OutputPath   string   `json:"output_path,omitempty"`
	ClipCount    int      `json:"clip_count"`
	FrameRate    float64  `json:"frame_rate"`
	UnknownShots []string `json:"unknown_shots"`
	EDL          string   `json:"edl,omitempty"`
}
