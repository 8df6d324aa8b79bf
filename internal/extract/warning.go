package extract

import "fmt"

// WarningKind classifies a recoverable condition.
type WarningKind string

const (
	WarnFallbackValue    WarningKind = "fallback_value"
	WarnEncodingFallback WarningKind = "encoding_fallback"
	WarnDroppedSamples   WarningKind = "dropped_samples"
	WarnMissingAssayFile WarningKind = "missing_assay_file"
	WarnRenamedSamples   WarningKind = "renamed_samples"
	WarnNamingColumn     WarningKind = "naming_column"
	WarnProfileNotice    WarningKind = "profile_notice"
)

// Warning is a condition that was logged and tolerated.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Subject == "" {
		return fmt.Sprintf("[%s] %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", w.Kind, w.Subject, w.Message)
}
