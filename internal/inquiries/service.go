package inquiries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ngo-inquiry-tracker/internal/cache"
	"ngo-inquiry-tracker/internal/dip"
)

// DashboardTopic is the realtime topic dashboard clients subscribe to.
const DashboardTopic = "dashboard"

// ErrNotFound is returned by Inquiry for unknown IDs.
var ErrNotFound = errors.New("inquiry not found")

// Source is the upstream the service reads proceedings from.
type Source interface {
	ListAll(ctx context.Context, q dip.Query, maxPages int) ([]dip.Vorgang, error)
	GetVorgang(ctx context.Context, id string) (dip.Vorgang, error)
}

// Broadcaster publishes events to realtime subscribers.
type Broadcaster interface {
	Broadcast(topic string, message []byte)
}

// Options configures which proceedings are tracked and how long results
// are cached.
type Options struct {
	Wahlperiode int
	StartDate   string
	MaxPages    int
	TTL         time.Duration
	Keywords    []string
	LatestLimit int
	Logger      *logrus.Logger
}

// Inquiry is the view of a proceeding rendered by the site.
type Inquiry struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	Date       string   `json:"date"`
	Abstract   string   `json:"abstract,omitempty"`
	Initiators []string `json:"initiators,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
	Matched    []string `json:"matched,omitempty"`
	SourceURL  string   `json:"sourceUrl"`
}

// Count is one bucket of an aggregation.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Dashboard is the cached result behind the landing page.
type Dashboard struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Wahlperiode int       `json:"wahlperiode"`
	Since       string    `json:"since"`
	Total       int       `json:"total"`
	ByStatus    []Count   `json:"byStatus"`
	ByInitiator []Count   `json:"byInitiator"`
	ByMonth     []Count   `json:"byMonth"`
	Latest      []Inquiry `json:"latest"`
	Inquiries   []Inquiry `json:"inquiries"`
}

// Service builds the dashboard from the DIP API and keeps it in the cache.
type Service struct {
	source  Source
	store   cache.Store
	hub     Broadcaster
	matcher *Matcher
	opts    Options
	log     *logrus.Entry
}

// NewService wires a Service. hub may be nil.
func NewService(source Source, store cache.Store, hub Broadcaster, opts Options) *Service {
	if len(opts.Keywords) == 0 {
		opts.Keywords = DefaultKeywords
	}
	if opts.LatestLimit <= 0 {
		opts.LatestLimit = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Service{
		source:  source,
		store:   store,
		hub:     hub,
		matcher: NewMatcher(opts.Keywords),
		opts:    opts,
		log:     logger.WithField("component", "inquiries"),
	}
}

// DashboardKey is the cache key of the dashboard payload.
func (s *Service) DashboardKey() string {
	return fmt.Sprintf("dip:inquiries:wp%d:%s", s.opts.Wahlperiode, s.opts.StartDate)
}

// Dashboard returns the cached dashboard, building it on a miss. Upstream
// errors are returned unchanged and nothing is cached.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	return cache.Remember(s.store, s.DashboardKey(), s.opts.TTL, func() (Dashboard, error) {
		start := time.Now()
		d, err := s.build(ctx)
		if err != nil {
			s.log.WithError(err).Warn("failed to build dashboard")
			return Dashboard{}, err
		}
		s.log.WithFields(logrus.Fields{
			"total":    d.Total,
			"duration": time.Since(start).String(),
		}).Info("dashboard rebuilt from DIP")
		return d, nil
	})
}

// Inquiry returns a single proceeding, cached under its own key.
func (s *Service) Inquiry(ctx context.Context, id string) (Inquiry, error) {
	return cache.Remember(s.store, "dip:vorgang:"+id, s.opts.TTL, func() (Inquiry, error) {
		v, err := s.source.GetVorgang(ctx, id)
		if err != nil {
			if errors.Is(err, dip.ErrNotFound) {
				return Inquiry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return Inquiry{}, err
		}
		return s.toInquiry(v), nil
	})
}

// Refresh rebuilds the dashboard, replaces the cached copy and notifies
// realtime clients. On failure the cached dashboard is left in place.
func (s *Service) Refresh(ctx context.Context) (Dashboard, error) {
	d, err := s.build(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to refresh dashboard")
		return Dashboard{}, err
	}
	if !s.store.Set(s.DashboardKey(), d, s.opts.TTL) {
		s.log.Warn("refreshed dashboard could not be cached")
	}

	if s.hub != nil {
		evt := map[string]any{
			"type":        "inquiries_refreshed",
			"total":       d.Total,
			"generatedAt": d.GeneratedAt,
			"version":     1,
		}
		if bytes, err := json.Marshal(evt); err == nil {
			s.hub.Broadcast(DashboardTopic, bytes)
		}
	}
	return d, nil
}

func (s *Service) build(ctx context.Context) (Dashboard, error) {
	vorgaenge, err := s.source.ListAll(ctx, dip.Query{
		Vorgangstyp: []string{dip.TypeKleineAnfrage, dip.TypeGrosseAnfrage},
		Wahlperiode: s.opts.Wahlperiode,
		DatumStart:  s.opts.StartDate,
	}, s.opts.MaxPages)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list inquiries: %w", err)
	}

	seen := make(map[string]struct{}, len(vorgaenge))
	items := make([]Inquiry, 0, len(vorgaenge))
	for _, v := range vorgaenge {
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		inq := s.toInquiry(v)
		if len(inq.Matched) == 0 {
			continue
		}
		items = append(items, inq)
	}

	return Summarize(items, s.opts.Wahlperiode, s.opts.StartDate, s.opts.LatestLimit), nil
}

func (s *Service) toInquiry(v dip.Vorgang) Inquiry {
	return Inquiry{
		ID:         v.ID,
		Title:      v.Titel,
		Type:       v.Vorgangstyp,
		Status:     v.Beratungsstand,
		Date:       v.Datum,
		Abstract:   v.Abstract,
		Initiators: v.Initiative,
		Subjects:   v.Sachgebiet,
		Matched:    s.matcher.Match(v),
		SourceURL:  "https://dip.bundestag.de/vorgang/-/" + v.ID,
	}
}

// Summarize sorts items newest first and computes the dashboard
// aggregations.
func Summarize(items []Inquiry, wahlperiode int, since string, latest int) Dashboard {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].ID > items[j].ID
	})

	byStatus := map[string]int{}
	byInitiator := map[string]int{}
	byMonth := map[string]int{}
	for _, it := range items {
		status := it.Status
		if status == "" {
			status = "unbekannt"
		}
		byStatus[status]++
		for _, ini := range it.Initiators {
			byInitiator[ini]++
		}
		if len(it.Date) >= 7 {
			byMonth[it.Date[:7]]++
		}
	}

	if latest > len(items) {
		latest = len(items)
	}

	months := toCounts(byMonth)
	sort.Slice(months, func(i, j int) bool { return months[i].Label < months[j].Label })

	return Dashboard{
		GeneratedAt: time.Now().UTC(),
		Wahlperiode: wahlperiode,
		Since:       since,
		Total:       len(items),
		ByStatus:    sortByCount(toCounts(byStatus)),
		ByInitiator: sortByCount(toCounts(byInitiator)),
		ByMonth:     months,
		Latest:      append([]Inquiry(nil), items[:latest]...),
		Inquiries:   items,
	}
}

func toCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for label, n := range m {
		out = append(out, Count{Label: label, Count: n})
	}
	return out
}

func sortByCount(c []Count) []Count {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Count != c[j].Count {
			return c[i].Count > c[j].Count
		}
		return strings.Compare(c[i].Label, c[j].Label) < 0
	})
	return c
}
