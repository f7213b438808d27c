// Package syncer imports new newsletters for a user: fetch, skip what is
// already stored, enrich through the pipeline and persist.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"newslettersync_go/htmltext"
	"newslettersync_go/message"
	"newslettersync_go/pipeline"
	"newslettersync_go/store"
	"newslettersync_go/validator"
)

// FailedSummary marks newsletters stored without enrichment.
const FailedSummary = "Processing failed."

type Source interface {
	FetchNewsletters(ctx context.Context, senders []string, after time.Time) ([]message.Parsed, error)
}

type Enricher interface {
	Run(ctx context.Context, body string) (pipeline.Result, error)
}

type Store interface {
	NewsletterExists(ctx context.Context, userID, messageID string) (bool, error)
	UpsertPublisher(ctx context.Context, userID, email, name string) (string, error)
	ListPublisherEmails(ctx context.Context, userID string) ([]string, error)
	InsertNewsletter(ctx context.Context, n *store.Newsletter) (bool, error)
}

type Config struct {
	// Senders are queried in addition to the stored publishers.
	Senders []string
	// Lookback bounds the query to recent mail; zero means no bound.
	Lookback   time.Duration
	Vocabulary []string
}

// Stats describes one Sync. Synced counts stored rows, Degraded the subset
// stored without enrichment, Skipped the messages already known.
type Stats struct {
	Synced   int `json:"synced"`
	Total    int `json:"total"`
	Degraded int `json:"degraded"`
	Skipped  int `json:"skipped"`
}

type Syncer struct {
	src Source
	enr Enricher
	db  Store
	cfg Config
	log zerolog.Logger
	now func() time.Time
}

func New(src Source, enr Enricher, db Store, cfg Config, log zerolog.Logger) *Syncer {
	return &Syncer{
		src: src,
		enr: enr,
		db:  db,
		cfg: cfg,
		log: log.With().Str("component", "syncer").Logger(),
		now: time.Now,
	}
}

// Sync imports userID's new newsletters. A listing failure aborts with
// nothing imported; a pipeline failure stores the message degraded.
func (s *Syncer) Sync(ctx context.Context, userID string) (Stats, error) {
	var stats Stats

	known, err := s.db.ListPublisherEmails(ctx, userID)
	if err != nil {
		return stats, err
	}
	senders := append(append([]string{}, s.cfg.Senders...), known...)

	var after time.Time
	if s.cfg.Lookback > 0 {
		after = s.now().Add(-s.cfg.Lookback)
	}

	msgs, err := s.src.FetchNewsletters(ctx, senders, after)
	if err != nil {
		return stats, fmt.Errorf("fetch newsletters: %w", err)
	}
	stats.Total = len(msgs)
	s.log.Info().Str("user_id", userID).Int("fetched", len(msgs)).Msg("fetched newsletters")

	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		exists, err := s.db.NewsletterExists(ctx, userID, m.ID)
		if err != nil {
			return stats, err
		}
		if exists {
			stats.Skipped++
			continue
		}

		res, degraded := s.enrich(ctx, m)

		stored, err := s.save(ctx, userID, m, res)
		if err != nil {
			return stats, err
		}
		if stored {
			stats.Synced++
			if degraded {
				stats.Degraded++
			}
		}
	}

	s.log.Info().
		Str("user_id", userID).
		Int("synced", stats.Synced).
		Int("degraded", stats.Degraded).
		Int("skipped", stats.Skipped).
		Msg("sync complete")
	return stats, nil
}

func (s *Syncer) enrich(ctx context.Context, m message.Parsed) (pipeline.Result, bool) {
	log := s.log.With().Str("message_id", m.ID).Logger()

	res, err := s.enr.Run(ctx, m.Body())
	if err != nil {
		log.Error().Err(err).Msg("pipeline failed, storing raw text")
		return Degrade(m), true
	}
	if v := validator.ValidateResult(res, s.cfg.Vocabulary); v != "" {
		log.Warn().Str("subject", m.Subject).Msgf("validator: %s", v)
	}
	return res, false
}

// Degrade is the stored result when enrichment failed: raw text, no link and
// no topics.
func Degrade(m message.Parsed) pipeline.Result {
	text := m.PlainText
	if text == "" {
		text = htmltext.PlainText(m.HTML)
	}
	return pipeline.Result{
		CleanedText: text,
		Summary:     FailedSummary,
		Topics:      []string{},
	}
}

func (s *Syncer) save(ctx context.Context, userID string, m message.Parsed, res pipeline.Result) (bool, error) {
	pubID, err := s.db.UpsertPublisher(ctx, userID, m.Sender.Email, m.Sender.Name)
	if err != nil {
		return false, err
	}

	return s.db.InsertNewsletter(ctx, &store.Newsletter{
		UserID:      userID,
		PublisherID: pubID,
		MessageID:   m.ID,
		Subject:     m.Subject,
		ReceivedAt:  m.ReceivedAt,
		PlainText:   res.CleanedText,
		Link:        res.ViewInBrowserLink,
		Summary:     res.Summary,
		Topics:      store.Topics(res.Topics),
		ProcessedAt: s.now().UTC(),
	})
}
