package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/avelis/coinkeeper/internal/domain"
	"github.com/avelis/coinkeeper/internal/events"
	"github.com/avelis/coinkeeper/internal/modules/recurring"
)

// PastDueDigestJob runs the past-due scan once a day and publishes the
// summary on the event bus so the UI feeds pick it up.
type PastDueDigestJob struct {
	detector *recurring.PastDueDetector
	bus      *events.Bus
	log      zerolog.Logger
}

// NewPastDueDigestJob creates a new PastDueDigestJob
func NewPastDueDigestJob(detector *recurring.PastDueDetector, bus *events.Bus, log zerolog.Logger) *PastDueDigestJob {
	return &PastDueDigestJob{
		detector: detector,
		bus:      bus,
		log:      log.With().Str("job", "pastdue_digest").Logger(),
	}
}

// Name returns the job name
func (j *PastDueDigestJob) Name() string {
	return "pastdue_digest"
}

// Run scans all accounts and emits the digest.
func (j *PastDueDigestJob) Run() error {
	report, err := j.detector.Scan(nil)
	if err != nil {
		return err
	}

	if report.TotalCount == 0 {
		j.log.Debug().Msg("No past-due occurrences")
		return nil
	}

	data := map[string]interface{}{
		"total_count": report.TotalCount,
	}
	if report.TotalAmount != nil {
		data["total_amount"] = report.TotalAmount.String()
	}
	if report.OldestDate != nil {
		data["oldest_date"] = report.OldestDate.Format(domain.DateFormat)
	}

	j.log.Info().
		Int("total_count", report.TotalCount).
		Msg("Past-due digest")
	j.bus.Emit(events.PastDueDigest, "scheduler", data)

	return nil
}
