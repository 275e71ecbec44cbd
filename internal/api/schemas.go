package api

import (
	"time"

	"github.com/heimdex/heimdex-vision/internal/anomaly"
	"github.com/heimdex/heimdex-vision/internal/catalog"
	"github.com/heimdex/heimdex-vision/internal/cluster"
	"github.com/heimdex/heimdex-vision/internal/frames"
	"github.com/heimdex/heimdex-vision/internal/quality"
	"github.com/heimdex/heimdex-vision/internal/shots"
	"github.com/heimdex/heimdex-vision/internal/similarity"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

type HealthResponse struct {
	Status   string        `json:"status"`
	Version  string        `json:"version"`
	UptimeS  int64         `json:"uptime_s"`
	DeviceID string        `json:"device_id"`
	Tools    *ToolsSummary `json:"tools,omitempty"`
}

type ToolsSummary struct {
	FFmpeg      bool   `json:"ffmpeg"`
	FFprobe     bool   `json:"ffprobe"`
	CanSegment  bool   `json:"can_segment"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type StatusResponse struct {
	State       string       `json:"state"`
	LastError   string       `json:"last_error,omitempty"`
	AssetsCount int          `json:"assets_count"`
	VideosCount int          `json:"videos_count"`
	JobsRunning int          `json:"jobs_running"`
	ActiveJob   *JobResponse `json:"active_job,omitempty"`
}

// Vector operations

type PairwiseRequest struct {
	A         vecmath.FeatureVector `json:"a"`
	B         vecmath.FeatureVector `json:"b"`
	Threshold *float64              `json:"threshold,omitempty"`
}

type PairwiseResponse struct {
	similarity.Result
	SameCharacter   bool    `json:"same_character"`
	Threshold       float64 `json:"threshold"`
	ConfidenceLevel string  `json:"confidence_level"`
	Explanation     string  `json:"explanation"`
}

type VectorsRequest struct {
	Vectors []vecmath.FeatureVector `json:"vectors"`
}

type MatrixResponse struct {
	Size   int         `json:"size"`
	Matrix [][]float64 `json:"similarity_matrix"`
}

type RankRequest struct {
	Reference  vecmath.FeatureVector   `json:"reference"`
	Candidates []vecmath.FeatureVector `json:"candidates"`
	TopK       int                     `json:"top_k,omitempty"`
}

type RankResponse struct {
	Total   int                 `json:"total_candidates"`
	Results []similarity.Ranked `json:"results"`
}

type GroupRequest struct {
	Vectors   []vecmath.FeatureVector `json:"vectors"`
	Threshold *float64                `json:"threshold,omitempty"`
}

type GroupResponse struct {
	Threshold float64            `json:"threshold"`
	Groups    []similarity.Group `json:"groups"`
}

type QualityRequest struct {
	Vectors   []vecmath.FeatureVector `json:"vectors"`
	Threshold *float64                `json:"threshold,omitempty"`
}

type VectorQuality struct {
	Index int `json:"index"`
	quality.Report
	Passes bool `json:"passes_threshold"`
}

type QualityResponse struct {
	Threshold float64         `json:"quality_threshold"`
	Results   []VectorQuality `json:"results"`
	Summary   quality.Summary `json:"summary"`
	Passing   int             `json:"passing_count"`
}

type AnomalyRequest struct {
	Reference         []vecmath.FeatureVector `json:"reference"`
	Test              []vecmath.FeatureVector `json:"test"`
	ScoreThreshold    *float64                `json:"anomaly_threshold,omitempty"`
	CentroidThreshold *float64                `json:"centroid_threshold,omitempty"`
}

type VectorAnomaly struct {
	Index int `json:"index"`
	anomaly.Verdict
}

type AnomalyResponse struct {
	AnomaliesDetected int             `json:"anomalies_detected"`
	AnomalyRate       float64         `json:"anomaly_rate"`
	Results           []VectorAnomaly `json:"results"`
}

type ClusterRequest struct {
	Vectors []vecmath.FeatureVector `json:"vectors"`
	K       int                     `json:"n_clusters,omitempty"`
	Seed    int64                   `json:"seed,omitempty"`
}

type ClusterResponse = cluster.Result

// Frames

type CompositionResponse struct {
	Composition frames.Composition `json:"composition"`
	Shot        frames.ShotComp    `json:"shot"`
	Tags        []string           `json:"tags"`
}

// Media

type AssetResponse struct {
	ID                string    `json:"id"`
	Filename          string    `json:"filename"`
	ContentType       string    `json:"content_type"`
	Size              int64     `json:"size"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	FeaturesExtracted bool      `json:"features_extracted"`
	FeatureModel      string    `json:"feature_model,omitempty"`
	FeatureDimension  int       `json:"feature_dimension,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type UploadResponse struct {
	Asset AssetResponse `json:"asset"`
	JobID string        `json:"job_id,omitempty"`
}

type AssetsResponse struct {
	Assets []AssetResponse `json:"assets"`
}

func AssetToResponse(a *catalog.MediaAsset) AssetResponse {
	return AssetResponse{
		ID:                a.ID,
		Filename:          a.Filename,
		ContentType:       a.ContentType,
		Size:              a.Size,
		Width:             a.Width,
		Height:            a.Height,
		FeaturesExtracted: a.FeaturesExtracted,
		FeatureModel:      a.FeatureModel,
		FeatureDimension:  a.Features.Dim(),
		CreatedAt:         a.CreatedAt,
	}
}

// Asset analyses

type MatchRequest struct {
	ReferenceID  string   `json:"reference_asset_id"`
	CandidateIDs []string `json:"candidate_asset_ids"`
}

type SearchRequest struct {
	QueryID    string   `json:"query_asset_id"`
	DatasetIDs []string `json:"dataset_asset_ids"`
	TopK       int      `json:"top_k,omitempty"`
}

type ConsistencyRequest struct {
	AssetID1 string `json:"asset_id_1"`
	AssetID2 string `json:"asset_id_2"`
}

type CharactersRequest struct {
	ReferenceID string   `json:"reference_asset_id"`
	TestIDs     []string `json:"test_asset_ids"`
}

type AssetGroupRequest struct {
	AssetIDs  []string `json:"asset_ids"`
	Threshold *float64 `json:"similarity_threshold,omitempty"`
}

type AssetQualityRequest struct {
	AssetIDs  []string `json:"asset_ids"`
	Threshold *float64 `json:"quality_threshold,omitempty"`
}

type AssetAnomalyRequest struct {
	ReferenceIDs   []string `json:"reference_asset_ids"`
	TestIDs        []string `json:"test_asset_ids"`
	ScoreThreshold *float64 `json:"anomaly_threshold,omitempty"`
}

type AssetClusterRequest struct {
	AssetIDs []string `json:"asset_ids"`
	K        int      `json:"n_clusters,omitempty"`
}

type ShotConsistencyRequest struct {
	ReferenceID string   `json:"character_reference_asset_id"`
	ShotIDs     []string `json:"shot_asset_ids"`
}

type EnforcementRequest struct {
	MasterID     string   `json:"master_reference_asset_id"`
	GeneratedIDs []string `json:"generated_asset_ids"`
	Threshold    float64  `json:"compliance_threshold,omitempty"`
}

// Videos and shots

type RegisterVideoRequest struct {
	Path string `json:"path"`
}

type VideoResponse struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	FPS       float64   `json:"fps"`
	Duration  float64   `json:"duration"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterVideoResponse struct {
	Video VideoResponse `json:"video"`
	JobID string        `json:"job_id,omitempty"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

func VideoToResponse(v *catalog.Video) VideoResponse {
	return VideoResponse{
		ID:        v.ID,
		Path:      v.Path,
		Filename:  v.Filename,
		FPS:       v.FPS,
		Duration:  v.Duration,
		Width:     v.Width,
		Height:    v.Height,
		CreatedAt: v.CreatedAt,
	}
}

type VideoShotsResponse struct {
	VideoID string        `json:"video_id"`
	Count   int           `json:"shot_count"`
	Shots   []*shots.Shot `json:"shots"`
}

type SuggestRequest struct {
	shots.Query
	Limit int `json:"limit,omitempty"`
}

type SuggestResponse struct {
	Query       shots.Query    `json:"query"`
	Candidates  int            `json:"candidates_considered"`
	Suggestions []shots.Scored `json:"suggestions"`
}

// Jobs

type JobResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	VideoID   string `json:"video_id,omitempty"`
	AssetID   string `json:"asset_id,omitempty"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

func JobToResponse(j *catalog.Job) JobResponse {
	return JobResponse{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		VideoID:   j.VideoID,
		AssetID:   j.AssetID,
		Progress:  j.Progress,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
		UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
	}
}

type ConfigResponse struct {
	Defaults
	SameCharacterThreshold     float64 `json:"same_character_threshold"`
	ShotConsistentThreshold    float64 `json:"shot_consistent_threshold"`
	DefaultComplianceThreshold float64 `json:"default_compliance_threshold"`
	Version                    string  `json:"version"`
}
