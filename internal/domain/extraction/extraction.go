package extraction

import (
	"context"
	"time"

	"learning_observer/internal/domain/observation"
)

// Metadata describes the session a narrative report is generated for.
type Metadata struct {
	StudentName  string
	ObserverName string
	ClassName    string
	SessionDate  time.Time
	SessionStart string
	SessionEnd   string
}

type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// ReportGenerator turns extracted text into the structured report stored on an observation.
type ReportGenerator interface {
	GenerateNarrativeReport(ctx context.Context, text string, meta Metadata) (observation.ReportDetails, error)
}
