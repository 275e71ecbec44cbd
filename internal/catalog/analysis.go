package catalog

import (
	"context"
	"time"

	"github.com/heimdex/heimdex-vision/internal/anomaly"
	"github.com/heimdex/heimdex-vision/internal/cluster"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/metrics"
	"github.com/heimdex/heimdex-vision/internal/quality"
	"github.com/heimdex/heimdex-vision/internal/similarity"
	"github.com/heimdex/heimdex-vision/internal/vecmath"
)

const errNoFeatures = "asset not found or features not extracted"

// AssetRef names an asset in analysis output.
type AssetRef struct {
	AssetID  string `json:"asset_id"`
	Filename string `json:"filename"`
}

// AssetMatch is one candidate compared with a reference asset.
type AssetMatch struct {
	AssetRef
	similarity.Result
}

type MatchReport struct {
	ReferenceAssetID    string       `json:"reference_asset_id"`
	CandidatesProcessed int          `json:"candidates_processed"`
	BestMatch           *AssetMatch  `json:"best_match"`
	Ranked              []AssetMatch `json:"ranked_results"`
}

type SearchReport struct {
	QueryAssetID  string       `json:"query_asset_id"`
	QueryFilename string       `json:"query_filename"`
	DatasetSize   int          `json:"dataset_size"`
	ResultsFound  int          `json:"results_found"`
	TopK          int          `json:"top_k"`
	Results       []AssetMatch `json:"search_results"`
}

type ConsistencyReport struct {
	AssetID1        string `json:"asset_id_1"`
	AssetID2        string `json:"asset_id_2"`
	SameCharacter   bool   `json:"same_character"`
	ConfidenceLevel string `json:"confidence_level"`
	Explanation     string `json:"explanation"`
	similarity.Result
}

type CharacterMatch struct {
	TestAssetID     string  `json:"test_asset_id"`
	Filename        string  `json:"filename,omitempty"`
	SameCharacter   bool    `json:"same_character"`
	ConfidenceLevel string  `json:"confidence_level,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
	Explanation     string  `json:"explanation,omitempty"`
	Error           string  `json:"error,omitempty"`
	similarity.Result
}

type CharacterReport struct {
	ReferenceAssetID      string           `json:"reference_asset_id"`
	ReferenceFilename     string           `json:"reference_filename"`
	TotalTested           int              `json:"total_tested"`
	ProcessedSuccessfully int              `json:"processed_successfully"`
	SameCharacterCount    int              `json:"same_character_count"`
	AverageSimilarity     float64          `json:"average_similarity"`
	Results               []CharacterMatch `json:"consistency_results"`
}

type CharacterGroup struct {
	GroupID        int        `json:"group_id"`
	CharacterCount int        `json:"character_count"`
	Assets         []AssetRef `json:"assets"`
	Representative AssetRef   `json:"representative_asset"`
}

type GroupReport struct {
	TotalAssets        int              `json:"total_assets"`
	AssetsWithFeatures int              `json:"assets_with_features"`
	Threshold          float64          `json:"similarity_threshold"`
	GroupsFound        int              `json:"groups_found"`
	Groups             []CharacterGroup `json:"character_groups"`
}

type AssetQuality struct {
	AssetRef
	quality.Report
	Passes bool   `json:"passes_threshold"`
	Error  string `json:"error,omitempty"`
}

type QualityReport struct {
	Threshold float64         `json:"quality_threshold"`
	Results   []AssetQuality  `json:"results"`
	Summary   quality.Summary `json:"summary"`
	Passing   int             `json:"passing_count"`
}

type AssetAnomaly struct {
	AssetRef
	anomaly.Verdict
}

type AnomalyReport struct {
	ReferenceAssets     int            `json:"reference_assets"`
	TestAssets          int            `json:"test_assets"`
	ScoreThreshold      float64        `json:"anomaly_threshold"`
	AnomaliesDetected   int            `json:"anomalies_detected"`
	AnomalyRate         float64        `json:"anomaly_rate"`
	AverageAnomalyScore float64        `json:"average_anomaly_score"`
	Results             []AssetAnomaly `json:"anomaly_results"`
}

type AssetCluster struct {
	ClusterID int        `json:"cluster_id"`
	Size      int        `json:"size"`
	Inertia   float64    `json:"inertia"`
	Assets    []AssetRef `json:"assets"`
}

type ClusterReport struct {
	TotalAssets     int            `json:"total_assets"`
	AssetsClustered int            `json:"assets_clustered"`
	K               int            `json:"n_clusters"`
	TotalInertia    float64        `json:"total_inertia"`
	Clusters        []AssetCluster `json:"clusters"`
}

type ShotValidation struct {
	ShotIndex        int    `json:"shot_index"`
	ShotAssetID      string `json:"shot_asset_id"`
	Filename         string `json:"filename,omitempty"`
	Consistent       bool   `json:"consistent"`
	ValidationStatus string `json:"validation_status,omitempty"`
	Recommendation   string `json:"recommendation,omitempty"`
	Error            string `json:"error,omitempty"`
	similarity.Result
}

type ShotConsistencyReport struct {
	ReferenceAssetID       string           `json:"character_reference_asset_id"`
	ReferenceFilename      string           `json:"reference_filename"`
	TotalShots             int              `json:"total_shots"`
	ProcessedShots         int              `json:"processed_shots"`
	ConsistentShots        int              `json:"consistent_shots"`
	ConsistencyRate        float64          `json:"consistency_rate"`
	AverageSimilarity      float64          `json:"average_similarity"`
	SequenceStatus         string           `json:"sequence_status"`
	SequenceRecommendation string           `json:"sequence_recommendation"`
	Validations            []ShotValidation `json:"shot_validations"`
}

type ComplianceResult struct {
	GeneratedAssetID string `json:"generated_asset_id"`
	Filename         string `json:"filename,omitempty"`
	Error            string `json:"error,omitempty"`
	similarity.ComplianceVerdict
	Cosine    float64 `json:"cosine_similarity"`
	Euclidean float64 `json:"euclidean_distance"`
}

type EnforcementReport struct {
	MasterAssetID         string             `json:"master_reference_asset_id"`
	MasterFilename        string             `json:"master_filename"`
	Threshold             float64            `json:"compliance_threshold"`
	TotalGenerated        int                `json:"total_generated"`
	ProcessedSuccessfully int                `json:"processed_successfully"`
	CompliantCount        int                `json:"compliant_count"`
	ComplianceRate        float64            `json:"compliance_rate"`
	AverageCompliance     float64            `json:"average_compliance_score"`
	ActionSummary         map[string]int     `json:"action_summary"`
	Results               []ComplianceResult `json:"compliance_results"`
}

// featured is an asset id resolved to a stored vector. asset is nil when the id is unknown
// or the asset has no features yet.
type featured struct {
	id    string
	asset *MediaAsset
}

func (f featured) ref() AssetRef {
	return AssetRef{AssetID: f.id, Filename: f.asset.Filename}
}

// reference loads an asset that must exist and carry features.
func (s *Service) reference(ctx context.Context, id string) (*MediaAsset, error) {
	a, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.FeaturesExtracted || len(a.Features) == 0 {
		return nil, visionerr.New(visionerr.CodeInvalidInput, "features not extracted",
			visionerr.Field("asset_id", id))
	}
	return a, nil
}

// resolve loads ids in order, keeping unknown or unextracted assets as nil entries.
func (s *Service) resolve(ctx context.Context, ids []string) ([]featured, error) {
	assets, err := s.repo.GetAssets(ctx, ids)
	if err != nil {
		return nil, storeErr(err, "get assets")
	}
	out := make([]featured, len(ids))
	for i, id := range ids {
		out[i] = featured{id: id}
		if a, ok := assets[id]; ok && a.FeaturesExtracted && len(a.Features) > 0 {
			out[i].asset = a
		}
	}
	return out, nil
}

// withFeatures drops the unresolved entries of list.
func withFeatures(list []featured) ([]featured, []vecmath.FeatureVector) {
	var kept []featured
	var vectors []vecmath.FeatureVector
	for _, f := range list {
		if f.asset == nil {
			continue
		}
		kept = append(kept, f)
		vectors = append(vectors, f.asset.Features)
	}
	return kept, vectors
}

func observe(op string, start time.Time, err error) {
	metrics.ObserveOperation(op, start)
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(op, string(visionerr.CodeOf(err))).Inc()
	}
}

// MatchAssets ranks candidates by similarity to a reference asset. Candidates without
// features are skipped.
func (s *Service) MatchAssets(ctx context.Context, referenceID string, candidateIDs []string) (report *MatchReport, err error) {
	defer func(start time.Time) { observe("assets_match", start, err) }(time.Now())

	ref, err := s.reference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	ranked, err := s.rank(ctx, ref, candidateIDs)
	if err != nil {
		return nil, err
	}
	report = &MatchReport{
		ReferenceAssetID:    referenceID,
		CandidatesProcessed: len(ranked),
		Ranked:              ranked,
	}
	if len(ranked) > 0 {
		best := ranked[0]
		report.BestMatch = &best
	}
	return report, nil
}

// SearchAssets returns the topK dataset assets most similar to the query asset.
func (s *Service) SearchAssets(ctx context.Context, queryID string, datasetIDs []string, topK int) (report *SearchReport, err error) {
	defer func(start time.Time) { observe("assets_search", start, err) }(time.Now())

	if topK <= 0 {
		topK = 10
	}
	query, err := s.reference(ctx, queryID)
	if err != nil {
		return nil, err
	}
	ranked, err := s.rank(ctx, query, datasetIDs)
	if err != nil {
		return nil, err
	}
	found := len(ranked)
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return &SearchReport{
		QueryAssetID:  queryID,
		QueryFilename: query.Filename,
		DatasetSize:   len(datasetIDs),
		ResultsFound:  found,
		TopK:          topK,
		Results:       ranked,
	}, nil
}

func (s *Service) rank(ctx context.Context, ref *MediaAsset, ids []string) ([]AssetMatch, error) {
	resolved, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	kept, vectors := withFeatures(resolved)
	ranked, err := similarity.Rank(ref.Features, vectors)
	if err != nil {
		return nil, err
	}
	out := make([]AssetMatch, len(ranked))
	for i, r := range ranked {
		out[i] = AssetMatch{AssetRef: kept[r.Index].ref(), Result: r.Result}
	}
	return out, nil
}

// CheckConsistency compares two assets directly.
func (s *Service) CheckConsistency(ctx context.Context, id1, id2 string) (report *ConsistencyReport, err error) {
	defer func(start time.Time) { observe("assets_consistency", start, err) }(time.Now())

	a, err := s.reference(ctx, id1)
	if err != nil {
		return nil, err
	}
	b, err := s.reference(ctx, id2)
	if err != nil {
		return nil, err
	}
	res, err := similarity.Pairwise(a.Features, b.Features)
	if err != nil {
		return nil, err
	}
	level, explanation := similarity.ConsistencyLevel(res.Percentage)
	return &ConsistencyReport{
		AssetID1:        id1,
		AssetID2:        id2,
		SameCharacter:   res.Percentage >= similarity.SameCharacterThreshold,
		ConfidenceLevel: level,
		Explanation:     explanation,
		Result:          res,
	}, nil
}

// MatchCharacters checks every test asset against a character reference. A test asset that
// cannot be compared is reported with an error entry instead of failing the batch.
func (s *Service) MatchCharacters(ctx context.Context, referenceID string, testIDs []string) (report *CharacterReport, err error) {
	defer func(start time.Time) { observe("assets_characters", start, err) }(time.Now())

	ref, err := s.reference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolve(ctx, testIDs)
	if err != nil {
		return nil, err
	}

	report = &CharacterReport{
		ReferenceAssetID:  referenceID,
		ReferenceFilename: ref.Filename,
		TotalTested:       len(testIDs),
		Results:           make([]CharacterMatch, 0, len(resolved)),
	}
	var sum float64
	for _, f := range resolved {
		m := CharacterMatch{TestAssetID: f.id}
		if f.asset == nil {
			m.Error = errNoFeatures
			report.Results = append(report.Results, m)
			continue
		}
		res, err := similarity.Pairwise(ref.Features, f.asset.Features)
		if err != nil {
			m.Error = err.Error()
			report.Results = append(report.Results, m)
			continue
		}
		m.Filename = f.asset.Filename
		m.Result = res
		m.SameCharacter = res.Percentage >= similarity.SameCharacterThreshold
		m.ConfidenceScore = res.Percentage / 100
		m.ConfidenceLevel, m.Explanation = similarity.CharacterLevel(res.Percentage)

		report.ProcessedSuccessfully++
		if m.SameCharacter {
			report.SameCharacterCount++
		}
		sum += res.Percentage
		report.Results = append(report.Results, m)
	}
	if report.ProcessedSuccessfully > 0 {
		report.AverageSimilarity = sum / float64(report.ProcessedSuccessfully)
	}
	return report, nil
}

// GroupAssets partitions assets by first-match similarity to a group opener.
func (s *Service) GroupAssets(ctx context.Context, ids []string, threshold float64) (report *GroupReport, err error) {
	defer func(start time.Time) { observe("assets_group", start, err) }(time.Now())

	resolved, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	kept, vectors := withFeatures(resolved)
	if len(kept) < 2 {
		return nil, visionerr.New(visionerr.CodeInsufficientData,
			"at least 2 assets with features are required for grouping",
			visionerr.Field("count", len(kept)))
	}
	groups, err := similarity.ThresholdGroup(vectors, threshold)
	if err != nil {
		return nil, err
	}

	report = &GroupReport{
		TotalAssets:        len(ids),
		AssetsWithFeatures: len(kept),
		Threshold:          threshold,
		GroupsFound:        len(groups),
		Groups:             make([]CharacterGroup, len(groups)),
	}
	for i, g := range groups {
		refs := make([]AssetRef, len(g.Members))
		for j, idx := range g.Members {
			refs[j] = kept[idx].ref()
		}
		report.Groups[i] = CharacterGroup{
			GroupID:        i,
			CharacterCount: len(refs),
			Assets:         refs,
			Representative: refs[0],
		}
	}
	return report, nil
}

// AssessQuality scores the stored features of each asset against threshold.
func (s *Service) AssessQuality(ctx context.Context, ids []string, threshold float64) (report *QualityReport, err error) {
	defer func(start time.Time) { observe("assets_quality", start, err) }(time.Now())

	if threshold < 0 || threshold > 1 {
		return nil, visionerr.InvalidInput("quality threshold %.2f outside [0, 1]", threshold)
	}
	resolved, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	report = &QualityReport{Threshold: threshold, Results: make([]AssetQuality, 0, len(resolved))}
	var reports []quality.Report
	for _, f := range resolved {
		if f.asset == nil {
			report.Results = append(report.Results, AssetQuality{
				AssetRef: AssetRef{AssetID: f.id},
				Error:    errNoFeatures,
			})
			continue
		}
		q, err := quality.Analyze(f.asset.Features)
		if err != nil {
			return nil, err
		}
		passes := q.Passes(threshold)
		if passes {
			report.Passing++
		}
		reports = append(reports, q)
		report.Results = append(report.Results, AssetQuality{AssetRef: f.ref(), Report: q, Passes: passes})
	}
	report.Summary = quality.Summarize(reports)
	return report, nil
}

// DetectAnomalies scores test assets against the distribution of the reference assets.
func (s *Service) DetectAnomalies(ctx context.Context, referenceIDs, testIDs []string, detector anomaly.Detector) (report *AnomalyReport, err error) {
	defer func(start time.Time) { observe("assets_anomalies", start, err) }(time.Now())

	refs, err := s.resolve(ctx, referenceIDs)
	if err != nil {
		return nil, err
	}
	_, refVectors := withFeatures(refs)
	tests, err := s.resolve(ctx, testIDs)
	if err != nil {
		return nil, err
	}
	keptTests, testVectors := withFeatures(tests)

	verdicts, err := detector.Detect(ctx, refVectors, testVectors)
	if err != nil {
		return nil, err
	}

	report = &AnomalyReport{
		ReferenceAssets: len(refVectors),
		TestAssets:      len(testVectors),
		ScoreThreshold:  detector.ScoreThreshold,
		Results:         make([]AssetAnomaly, len(verdicts)),
	}
	var sum float64
	for i, v := range verdicts {
		report.Results[i] = AssetAnomaly{AssetRef: keptTests[i].ref(), Verdict: v}
		if v.IsAnomaly {
			report.AnomaliesDetected++
		}
		sum += v.Score
	}
	report.AnomalyRate = float64(report.AnomaliesDetected) / float64(len(verdicts))
	report.AverageAnomalyScore = sum / float64(len(verdicts))
	return report, nil
}

// ClusterAssets groups assets with k-means. k == 0 picks the default.
func (s *Service) ClusterAssets(ctx context.Context, ids []string, k int) (report *ClusterReport, err error) {
	defer func(start time.Time) { observe("assets_clusters", start, err) }(time.Now())

	resolved, err := s.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	kept, vectors := withFeatures(resolved)
	res, err := cluster.Cluster(ctx, vectors, cluster.Options{K: k})
	if err != nil {
		return nil, err
	}

	report = &ClusterReport{
		TotalAssets:     len(ids),
		AssetsClustered: len(kept),
		K:               res.K,
		TotalInertia:    res.TotalInertia,
		Clusters:        make([]AssetCluster, len(res.Clusters)),
	}
	for i, c := range res.Clusters {
		refs := make([]AssetRef, len(c.Members))
		for j, idx := range c.Members {
			refs[j] = kept[idx].ref()
		}
		report.Clusters[i] = AssetCluster{
			ClusterID: c.Label,
			Size:      c.MemberCount,
			Inertia:   c.Inertia,
			Assets:    refs,
		}
	}
	return report, nil
}

// ValidateShots checks each shot asset against a character reference and grades the sequence.
func (s *Service) ValidateShots(ctx context.Context, referenceID string, shotIDs []string) (report *ShotConsistencyReport, err error) {
	defer func(start time.Time) { observe("assets_shot_consistency", start, err) }(time.Now())

	ref, err := s.reference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolve(ctx, shotIDs)
	if err != nil {
		return nil, err
	}

	report = &ShotConsistencyReport{
		ReferenceAssetID:  referenceID,
		ReferenceFilename: ref.Filename,
		TotalShots:        len(shotIDs),
		Validations:       make([]ShotValidation, 0, len(resolved)),
	}
	var sum float64
	for i, f := range resolved {
		v := ShotValidation{ShotIndex: i, ShotAssetID: f.id}
		if f.asset == nil {
			v.Error = errNoFeatures
			report.Validations = append(report.Validations, v)
			continue
		}
		res, err := similarity.Pairwise(ref.Features, f.asset.Features)
		if err != nil {
			v.Error = err.Error()
			report.Validations = append(report.Validations, v)
			continue
		}
		v.Filename = f.asset.Filename
		v.Result = res
		v.Consistent = res.Percentage >= similarity.ShotConsistentThreshold
		v.ValidationStatus, v.Recommendation = similarity.ShotStatus(res.Percentage)

		report.ProcessedShots++
		if v.Consistent {
			report.ConsistentShots++
		}
		sum += res.Percentage
		report.Validations = append(report.Validations, v)
	}
	if report.ProcessedShots > 0 {
		report.AverageSimilarity = sum / float64(report.ProcessedShots)
		report.ConsistencyRate = float64(report.ConsistentShots) / float64(report.ProcessedShots)
	}
	report.SequenceStatus, report.SequenceRecommendation = similarity.SequenceStatus(report.ConsistencyRate)
	return report, nil
}

// EnforceReference checks generated assets against a master reference and recommends an action
// for each. threshold == 0 selects the default compliance threshold.
func (s *Service) EnforceReference(ctx context.Context, masterID string, generatedIDs []string, threshold float64) (report *EnforcementReport, err error) {
	defer func(start time.Time) { observe("assets_reference_enforcement", start, err) }(time.Now())

	if threshold == 0 {
		threshold = similarity.DefaultComplianceThreshold
	}
	if threshold < 0 || threshold > 100 {
		return nil, visionerr.InvalidInput("compliance threshold %.2f outside [0, 100]", threshold)
	}
	master, err := s.reference(ctx, masterID)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolve(ctx, generatedIDs)
	if err != nil {
		return nil, err
	}

	report = &EnforcementReport{
		MasterAssetID:  masterID,
		MasterFilename: master.Filename,
		Threshold:      threshold,
		TotalGenerated: len(generatedIDs),
		ActionSummary: map[string]int{
			similarity.ActionApprove:    0,
			similarity.ActionReview:     0,
			similarity.ActionRegenerate: 0,
		},
		Results: make([]ComplianceResult, 0, len(resolved)),
	}
	var sum float64
	for _, f := range resolved {
		c := ComplianceResult{GeneratedAssetID: f.id}
		if f.asset == nil {
			c.Error = errNoFeatures
			report.Results = append(report.Results, c)
			continue
		}
		res, err := similarity.Pairwise(master.Features, f.asset.Features)
		if err != nil {
			c.Error = err.Error()
			report.Results = append(report.Results, c)
			continue
		}
		c.Filename = f.asset.Filename
		c.ComplianceVerdict = similarity.Compliance(res.Percentage, threshold)
		c.Cosine = res.Cosine
		c.Euclidean = res.Euclidean

		report.ProcessedSuccessfully++
		if c.Compliant {
			report.CompliantCount++
		}
		report.ActionSummary[c.Action]++
		sum += res.Percentage
		report.Results = append(report.Results, c)
	}
	if report.ProcessedSuccessfully > 0 {
		report.ComplianceRate = float64(report.CompliantCount) / float64(report.ProcessedSuccessfully)
		report.AverageCompliance = sum / float64(report.ProcessedSuccessfully)
	}
	return report, nil
}
