// Package gmail lists and fetches newsletter messages from a Gmail mailbox.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"newslettersync_go/message"
)

const (
	DefaultMaxResults = 20
	DefaultBatchSize  = 5

	pageLimit = 100
	me        = "me"
)

// ErrNotAuthorized means the token lacks Gmail scopes; the user has to
// authorize again.
var ErrNotAuthorized = errors.New("gmail access not authorized, run setup again to grant Gmail permissions")

type Config struct {
	// Query is appended to the generated sender query, e.g. "-in:spam".
	Query      string
	MaxResults int64
	BatchSize  int
}

type Service struct {
	svc *gmail.Service
	cb  *gobreaker.CircuitBreaker
	cfg Config
	log zerolog.Logger
}

// NewService builds a service on an already authorized HTTP client.
func NewService(ctx context.Context, client *http.Client, cfg Config, log zerolog.Logger, opts ...option.ClientOption) (*Service, error) {
	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	log = log.With().Str("component", "gmail").Logger()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures > 5 ||
				(c.Requests >= 10 && float64(c.TotalFailures)/float64(c.Requests) >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var ce *clientError
			return err == nil || errors.As(err, &ce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &Service{svc: svc, cb: cb, cfg: cfg, log: log}, nil
}

// BuildQuery returns `from:(a OR b) [after:epoch] [extra]`. Without senders
// it returns "".
func BuildQuery(senders []string, after time.Time, extra string) string {
	var kept []string
	seen := make(map[string]bool)
	for _, s := range senders {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return ""
	}

	parts := []string{"from:(" + strings.Join(kept, " OR ") + ")"}
	if !after.IsZero() {
		parts = append(parts, fmt.Sprintf("after:%d", after.Unix()))
	}
	if extra = strings.TrimSpace(extra); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " ")
}

// FetchNewsletters returns the parsed messages from senders received after
// after (zero means no bound), newest first. Messages that fail to fetch are
// skipped; the next sync picks them up.
func (s *Service) FetchNewsletters(ctx context.Context, senders []string, after time.Time) ([]message.Parsed, error) {
	query := BuildQuery(senders, after, s.cfg.Query)
	if query == "" {
		s.log.Warn().Msg("no newsletter senders configured, nothing to fetch")
		return nil, nil
	}

	ids, err := s.listIDs(ctx, query)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("query", query).Int("messages", len(ids)).Msg("listed messages")
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		mu  sync.Mutex
		out = make([]message.Parsed, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchSize)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			m, err := s.get(gctx, id)
			if err != nil {
				if errors.Is(err, ErrNotAuthorized) {
					return err
				}
				s.log.Warn().Err(err).Str("message_id", id).Msg("fetch message failed, skipping")
				return nil
			}
			parsed := message.Parse(FromGmail(m))
			mu.Lock()
			out = append(out, parsed)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	return out, nil
}

func (s *Service) listIDs(ctx context.Context, query string) ([]string, error) {
	var (
		ids   []string
		token string
	)
	for {
		remaining := s.cfg.MaxResults - int64(len(ids))
		call := s.svc.Users.Messages.List(me).Q(query).MaxResults(min(remaining, pageLimit)).Context(ctx)
		if token != "" {
			call = call.PageToken(token)
		}

		var resp *gmail.ListMessagesResponse
		err := s.execute(func() (err error) {
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}

		for _, m := range resp.Messages {
			if m.Id != "" {
				ids = append(ids, m.Id)
			}
		}
		token = resp.NextPageToken
		if token == "" || int64(len(ids)) >= s.cfg.MaxResults {
			break
		}
	}

	if int64(len(ids)) > s.cfg.MaxResults {
		ids = ids[:s.cfg.MaxResults]
	}
	return ids, nil
}

func (s *Service) get(ctx context.Context, id string) (*gmail.Message, error) {
	var m *gmail.Message
	err := s.execute(func() (err error) {
		m, err = s.svc.Users.Messages.Get(me, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return m, nil
}

// clientError carries 4xx responses through the breaker without counting
// them as failures.
type clientError struct{ err error }

func (e *clientError) Error() string { return e.err.Error() }
func (e *clientError) Unwrap() error { return e.err }

func (s *Service) execute(fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		err := fn()
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return nil, &clientError{err: err}
		}
		return nil, err
	})
	return mapError(err)
}

// mapError turns permission failures into ErrNotAuthorized.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var ce *clientError
	if errors.As(err, &ce) {
		err = ce.err
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}
	if apiErr.Code == http.StatusForbidden {
		if strings.Contains(strings.ToLower(apiErr.Message), "rate limit") {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "insufficientPermissions" {
			return fmt.Errorf("%w: %v", ErrNotAuthorized, err)
		}
	}
	return err
}
