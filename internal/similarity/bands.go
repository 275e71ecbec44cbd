package similarity

// Confidence bands applied to similarity percentages by the character and production checks.

const (
	// SameCharacterThreshold is the percentage at which two assets are taken to show the same subject.
	SameCharacterThreshold = 75.0
	// ShotConsistentThreshold is the percentage a shot needs to count as consistent with its reference.
	ShotConsistentThreshold = 70.0
	// DefaultComplianceThreshold applies when a reference enforcement request names none.
	DefaultComplianceThreshold = 80.0
)

type band struct {
	min         float64
	level       string
	explanation string
}

var characterBands = []band{
	{95, "extremely_high", "Extremely high similarity - definitely same character"},
	{85, "very_high", "Very high similarity - very likely same character"},
	{75, "high", "High similarity - likely same character"},
	{65, "medium", "Medium similarity - possibly same character with variations"},
	{50, "low", "Low similarity - unlikely same character"},
	{0, "very_low", "Very low similarity - definitely different character"},
}

var consistencyBands = []band{
	{90, "very_high", "Very high similarity indicates likely same character/person"},
	{75, "high", "High similarity suggests same character/person"},
	{60, "medium", "Medium similarity - possibly same character with different conditions"},
	{40, "low", "Low similarity - likely different characters"},
	{0, "very_low", "Very low similarity - definitely different characters"},
}

var shotBands = []band{
	{85, "excellent", "Character consistency is excellent"},
	{75, "good", "Character consistency is good"},
	{65, "acceptable", "Character consistency is acceptable but could be improved"},
	{50, "poor", "Character consistency is poor - consider reshooting"},
	{0, "unacceptable", "Character consistency is unacceptable - reshoot required"},
}

var sequenceBands = []band{
	{0.9, "excellent", "Sequence has excellent character consistency"},
	{0.8, "good", "Sequence has good character consistency"},
	{0.7, "acceptable", "Sequence has acceptable consistency but some shots need attention"},
	{0, "needs_work", "Sequence needs significant work on character consistency"},
}

func lookup(bands []band, value float64) (string, string) {
	for _, b := range bands {
		if value >= b.min {
			return b.level, b.explanation
		}
	}
	last := bands[len(bands)-1]
	return last.level, last.explanation
}

// CharacterLevel grades a percentage for character matching against a reference.
func CharacterLevel(percentage float64) (level, explanation string) {
	return lookup(characterBands, percentage)
}

// ConsistencyLevel grades a percentage for a direct two-asset consistency check.
func ConsistencyLevel(percentage float64) (level, explanation string) {
	return lookup(consistencyBands, percentage)
}

// ShotStatus grades a shot's percentage against the character reference.
func ShotStatus(percentage float64) (status, recommendation string) {
	return lookup(shotBands, percentage)
}

// SequenceStatus grades the fraction of consistent shots in a sequence.
func SequenceStatus(rate float64) (status, recommendation string) {
	return lookup(sequenceBands, rate)
}

// Compliance actions for generated content checked against a master reference.
const (
	ActionApprove    = "approve"
	ActionReview     = "review"
	ActionRegenerate = "regenerate"
)

// ComplianceVerdict is the outcome of checking one generated asset.
type ComplianceVerdict struct {
	Compliant      bool    `json:"compliant"`
	Score          float64 `json:"compliance_score"`
	Action         string  `json:"action"`
	Recommendation string  `json:"recommendation"`
}

// Compliance decides what to do with content scoring percentage against threshold.
func Compliance(percentage, threshold float64) ComplianceVerdict {
	v := ComplianceVerdict{Compliant: percentage >= threshold, Score: percentage}
	switch {
	case percentage >= 90:
		v.Action, v.Recommendation = ActionApprove, "Excellent compliance - approved for use"
	case percentage >= threshold:
		v.Action, v.Recommendation = ActionApprove, "Good compliance - approved with minor notes"
	case percentage >= threshold-10:
		v.Action, v.Recommendation = ActionReview, "Borderline compliance - consider regeneration with adjustments"
	default:
		v.Action, v.Recommendation = ActionRegenerate, "Poor compliance - regeneration required"
	}
	return v
}
