package analyzer

// Status is the verdict for one image.
type Status string

const (
	StatusUpToDate Status = "UP-TO-DATE"
	StatusOutdated Status = "OUTDATED"
	StatusWarning  Status = "WARNING"
	StatusUnknown  Status = "UNKNOWN"
)

// DefaultThreshold is the gap above which an image is OUTDATED.
const DefaultThreshold = 3

// ClassifyInput carries everything the verdict depends on.
type ClassifyInput struct {
	Parsed        bool // current tag parsed as a version
	HasCandidates bool // upstream returned at least one usable version
	Gap           int
	Threshold     int
	Violated      bool // an LTS rule exists and current is not on it
}

// Classify maps the inputs to a Status. Checks run in priority order:
// unparseable current, missing upstream data, gap over threshold, any gap
// or rule violation.
func Classify(in ClassifyInput) Status {
	switch {
	case !in.Parsed:
		return StatusUnknown
	case !in.HasCandidates:
		return StatusWarning
	case in.Gap > in.Threshold:
		return StatusOutdated
	case in.Gap > 0 || in.Violated:
		return StatusWarning
	default:
		return StatusUpToDate
	}
}
