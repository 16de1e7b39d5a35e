package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Patrick2402/image-version-analyzer/pkg/analyzer"
)

// SARIF 2.1.0 format: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
	toolName     = "imgcheck"
	toolURI      = "https://github.com/Patrick2402/image-version-analyzer"
)

// SarifReport represents the top-level SARIF report structure
type SarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SarifRun `json:"runs"`
}

// SarifRun represents a single run of the analysis tool
type SarifRun struct {
	Tool        SarifTool         `json:"tool"`
	Results     []SarifResult     `json:"results"`
	Invocations []SarifInvocation `json:"invocations"`
}

// SarifTool represents the tool that performed the analysis
type SarifTool struct {
	Driver SarifDriver `json:"driver"`
}

// SarifDriver represents the driver of the tool
type SarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []SarifRule `json:"rules"`
}

// SarifRule represents a rule that was evaluated during the analysis
type SarifRule struct {
	ID               string            `json:"id"`
	ShortDescription SarifMessage      `json:"shortDescription"`
	FullDescription  SarifMessage      `json:"fullDescription"`
	Help             SarifMessage      `json:"help"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// SarifResult represents a result of the analysis
type SarifResult struct {
	RuleID     string            `json:"ruleId"`
	Level      string            `json:"level"`
	Message    SarifMessage      `json:"message"`
	Locations  []SarifLocation   `json:"locations"`
	Properties map[string]string `json:"properties,omitempty"`
}

// SarifMessage represents a message in the SARIF report
type SarifMessage struct {
	Text string `json:"text"`
}

// SarifLocation represents a location in the code
type SarifLocation struct {
	PhysicalLocation SarifPhysicalLocation `json:"physicalLocation"`
}

// SarifPhysicalLocation represents a physical location in the code
type SarifPhysicalLocation struct {
	ArtifactLocation SarifArtifactLocation `json:"artifactLocation"`
	Region           *SarifRegion          `json:"region,omitempty"`
}

// SarifArtifactLocation represents the location of an artifact
type SarifArtifactLocation struct {
	URI string `json:"uri"`
}

// SarifRegion represents a region in the code
type SarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

// SarifInvocation represents an invocation of the tool
type SarifInvocation struct {
	ExecutionSuccessful bool   `json:"executionSuccessful"`
	StartTimeUtc        string `json:"startTimeUtc"`
	EndTimeUtc          string `json:"endTimeUtc"`
}

var sarifRules = []SarifRule{
	{
		ID:               "outdated",
		ShortDescription: SarifMessage{Text: "Base image is outdated"},
		FullDescription:  SarifMessage{Text: "The image tag is more versions behind the newest available release than the configured threshold allows."},
		Help:             SarifMessage{Text: "Update the image to the recommended tag."},
	},
	{
		ID:               "warning",
		ShortDescription: SarifMessage{Text: "Base image is behind or off policy"},
		FullDescription:  SarifMessage{Text: "The image tag is behind but within threshold, no candidate tags were found, or the version is not an LTS release."},
		Help:             SarifMessage{Text: "Plan an update to the recommended tag."},
	},
	{
		ID:               "unknown",
		ShortDescription: SarifMessage{Text: "Image version could not be determined"},
		FullDescription:  SarifMessage{Text: "The image reference has no tag, is pinned by digest, or uses a tag that is not a version."},
		Help:             SarifMessage{Text: "Pin the image to an explicit version tag."},
	},
}

// SarifFormatter writes a SARIF 2.1.0 log. UP-TO-DATE images produce no
// result.
type SarifFormatter struct {
	Options
}

// Format writes the report.
func (f *SarifFormatter) Format(w io.Writer, r *analyzer.Report) error {
	data, err := json.MarshalIndent(f.build(r), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

func (f *SarifFormatter) build(r *analyzer.Report) SarifReport {
	results := make([]SarifResult, 0, len(r.Results))
	for _, res := range r.Results {
		ruleID, level := sarifRule(res.Status)
		if ruleID == "" {
			continue
		}

		text := fmt.Sprintf("%s: %s", res.Image, res.Message)
		if res.Recommended != nil && res.Current != nil && *res.Recommended != *res.Current {
			text += fmt.Sprintf(" (recommended: %s)", *res.Recommended)
		}

		loc := SarifPhysicalLocation{ArtifactLocation: SarifArtifactLocation{URI: r.Source}}
		if line, ok := f.Lines[res.Image]; ok && line > 0 {
			loc.Region = &SarifRegion{StartLine: line}
		}

		props := map[string]string{"image": res.Image}
		if res.Current != nil {
			props["current"] = *res.Current
		}
		if res.Recommended != nil {
			props["recommended"] = *res.Recommended
		}

		results = append(results, SarifResult{
			RuleID:     ruleID,
			Level:      level,
			Message:    SarifMessage{Text: text},
			Locations:  []SarifLocation{{PhysicalLocation: loc}},
			Properties: props,
		})
	}

	version := f.Version
	if version == "" {
		version = "dev"
	}

	end := r.GeneratedAt
	if end.IsZero() {
		end = time.Now().UTC()
	}

	return SarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []SarifRun{
			{
				Tool: SarifTool{
					Driver: SarifDriver{
						Name:           toolName,
						Version:        version,
						InformationURI: toolURI,
						Rules:          sarifRules,
					},
				},
				Results: results,
				Invocations: []SarifInvocation{
					{
						ExecutionSuccessful: true,
						StartTimeUtc:        end.Add(-time.Second).Format(time.RFC3339),
						EndTimeUtc:          end.Format(time.RFC3339),
					},
				},
			},
		},
	}
}

func sarifRule(s analyzer.Status) (id, level string) {
	switch s {
	case analyzer.StatusOutdated:
		return "outdated", "error"
	case analyzer.StatusWarning:
		return "warning", "warning"
	case analyzer.StatusUnknown:
		return "unknown", "note"
	default:
		return "", ""
	}
}
