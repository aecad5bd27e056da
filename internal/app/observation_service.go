package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/extraction"
	"learning_observer/internal/domain/observation"
	"learning_observer/internal/domain/processing"
	"learning_observer/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RecordObservationInput is a finished report ready to be stored.
type RecordObservationInput struct {
	StudentID  string                    `json:"student_id" validate:"required"`
	ObserverID string                    `json:"observer_id" validate:"required"`
	ClassName  string                    `json:"class_name"`
	Date       time.Time                 `json:"date"` // zero means today in the scheduling zone
	Text       string                    `json:"observations"`
	FileURL    string                    `json:"file_url" validate:"omitempty,url"`
	ReportType processing.ReportType     `json:"report_type" validate:"omitempty,oneof=scheduled manual"`
	Report     observation.ReportDetails `json:"report"`
}

// ProduceObservationInput is raw session material. Exactly one of Image or Audio is set.
type ProduceObservationInput struct {
	RecordObservationInput
	Image        []byte
	Audio        []byte
	SessionStart string
	SessionEnd   string
}

// Collaborators used by ProduceObservation. Any of them may be nil if that path is unused.
type Extractors struct {
	Text      extraction.TextExtractor
	Audio     extraction.Transcriber
	Narrative extraction.ReportGenerator
}

type ObservationService struct {
	observations observation.Repository
	directory    directory.Repository
	processed    *ProcessingLog
	extractors   Extractors
	loc          *time.Location
	now          Clock
	logger       *logrus.Entry
}

func NewObservationService(
	or observation.Repository,
	dr directory.Repository,
	pl *ProcessingLog,
	ex Extractors,
	loc *time.Location,
	now Clock,
	logger *logrus.Entry,
) *ObservationService {
	if now == nil {
		now = systemClock
	}
	return &ObservationService{
		observations: or,
		directory:    dr,
		processed:    pl,
		extractors:   ex,
		loc:          loc,
		now:          now,
		logger:       logger.WithField("component", "observation_service"),
	}
}

type recordSubjects struct {
	child    *directory.Child
	observer *directory.User
}

// precheck validates input and resolves the child and observer. For scheduled reports it also
// refuses a second report on the same day.
func (s *ObservationService) precheck(ctx context.Context, in *RecordObservationInput) (*recordSubjects, error) {
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.ObserverID = strings.TrimSpace(in.ObserverID)
	if in.ReportType == "" {
		in.ReportType = processing.ReportTypeManual
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	child, err := s.directory.GetChild(ctx, in.StudentID)
	if err != nil {
		if errors.Is(err, directory.ErrChildNotFound) {
			return nil, &NotFoundError{Entity: "child", ID: in.StudentID}
		}
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	observer, err := s.directory.GetUser(ctx, in.ObserverID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, &NotFoundError{Entity: "observer", ID: in.ObserverID}
		}
		return nil, fmt.Errorf("failed to get observer: %w", err)
	}

	if in.ReportType == processing.ReportTypeScheduled {
		done, err := s.processed.HasProcessedToday(ctx, in.StudentID, in.ObserverID)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, &ConflictError{Entity: "scheduled report", Key: in.StudentID + " today"}
		}
	}
	return &recordSubjects{child: child, observer: observer}, nil
}

// RecordObservation saves the observation with fresh peer-review bookkeeping and then logs
// the processing entry.
func (s *ObservationService) RecordObservation(ctx context.Context, in RecordObservationInput) (*observation.Observation, error) {
	subj, err := s.precheck(ctx, &in)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, in, subj)
}

func (s *ObservationService) record(ctx context.Context, in RecordObservationInput, subj *recordSubjects) (*observation.Observation, error) {
	now := s.now().In(s.loc)
	date := in.Date
	if date.IsZero() {
		date = now
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	o := &observation.Observation{
		ID:                   uuid.NewString(),
		StudentID:            subj.child.ID,
		StudentName:          subj.child.Name,
		ObserverID:           subj.observer.ID,
		ObserverName:         subj.observer.Name,
		ClassName:            in.ClassName,
		Date:                 date,
		Timestamp:            now,
		Text:                 in.Text,
		Report:               in.Report,
		PeerReviewsRequired:  observation.DefaultPeerReviewsRequired,
		PeerReviewsCompleted: 0,
		PeerReviewStatus:     observation.StatusPending,
	}
	if in.FileURL != "" {
		o.FileURL = sql.NullString{String: in.FileURL, Valid: true}
	}

	if err := s.observations.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to save observation: %w", err)
	}

	l := s.logger.WithFields(logrus.Fields{
		"observation_id": o.ID,
		"child_id":       o.StudentID,
		"observer_id":    o.ObserverID,
		"report_type":    in.ReportType,
	})
	if _, err := s.processed.LogProcessing(ctx, o.StudentID, o.ObserverID, o.ID, in.ReportType); err != nil {
		// The observation is stored; only the guard entry is missing or duplicated.
		l.WithError(err).Error("Observation saved but processing log entry failed")
		return nil, err
	}

	metrics.IncrementObservationRecorded(string(in.ReportType))
	l.Info("Observation recorded")
	return o, nil
}

// ProduceObservation runs extraction and narrative generation, then records the result.
func (s *ObservationService) ProduceObservation(ctx context.Context, in ProduceObservationInput) (*observation.Observation, error) {
	hasImage, hasAudio := len(in.Image) > 0, len(in.Audio) > 0
	if hasImage == hasAudio {
		return nil, &ValidationError{Field: "file", Reason: "exactly one of image or audio is required"}
	}

	subj, err := s.precheck(ctx, &in.RecordObservationInput)
	if err != nil {
		return nil, err
	}

	var text string
	if hasImage {
		if s.extractors.Text == nil {
			return nil, &ExternalServiceError{Service: "text extraction", Err: errors.New("not configured")}
		}
		text, err = s.extractors.Text.ExtractText(ctx, in.Image)
		if err != nil {
			return nil, &ExternalServiceError{Service: "text extraction", Err: err}
		}
	} else {
		if s.extractors.Audio == nil {
			return nil, &ExternalServiceError{Service: "transcription", Err: errors.New("not configured")}
		}
		text, err = s.extractors.Audio.Transcribe(ctx, in.Audio)
		if err != nil {
			return nil, &ExternalServiceError{Service: "transcription", Err: err}
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "file", Reason: "no text could be extracted"}
	}

	if s.extractors.Narrative != nil {
		sessionDate := in.Date
		if sessionDate.IsZero() {
			sessionDate = s.now().In(s.loc)
		}
		report, err := s.extractors.Narrative.GenerateNarrativeReport(ctx, text, extraction.Metadata{
			StudentName:  subj.child.Name,
			ObserverName: subj.observer.Name,
			ClassName:    in.ClassName,
			SessionDate:  sessionDate,
			SessionStart: in.SessionStart,
			SessionEnd:   in.SessionEnd,
		})
		if err != nil {
			return nil, &ExternalServiceError{Service: "report generation", Err: err}
		}
		in.Report = report
	}
	in.Text = text

	return s.record(ctx, in.RecordObservationInput, subj)
}
