// Package sofascore is the Source Fetcher for the Sofascore JSON API: scheduled fixtures
// by date, team result history, match statistics and lineups with player statistics.
package sofascore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"

	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/support/clock"
	"github.com/tigerroll/matchday/pkg/batch/engine/step/retry"
	"github.com/tigerroll/matchday/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

const (
	moduleName = "Sofascore"
	dateLayout = "2006-01-02"
	referer    = "https://www.sofascore.com/"
)

var log = logger.For(moduleName)

// Item parameters, bound from model.Params right before a fetch.
type (
	dateParams struct {
		Date string `yaml:"date"`
	}
	teamParams struct {
		TeamID int64 `yaml:"team_id"`
	}
	eventParams struct {
		EventID    int64  `yaml:"event_id"`
		HomeTeamID int64  `yaml:"home_team_id"`
		HomeTeam   string `yaml:"home_team"`
		AwayTeamID int64  `yaml:"away_team_id"`
		AwayTeam   string `yaml:"away_team"`
	}
)

// Client fetches and parses Sofascore resources. It implements port.SourceFetcher.
type Client struct {
	http             *resty.Client
	teamHistoryLimit int
	loc              *time.Location
	clock            clock.Clock
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock stamping collected records.
func WithClock(c clock.Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// WithLocation sets the timezone used to assign events to calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(cl *Client) {
		if loc != nil {
			cl.loc = loc
		}
	}
}

// WithTracerProvider records one client span per HTTP request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cl *Client) {
		if tp != nil {
			instrument(cl.http, tp.Tracer(instrumentationName))
		}
	}
}

// NewClient creates a Client. timeout bounds a single HTTP exchange. The client adds no
// delay of its own; callers pace requests before calling Fetch.
func NewClient(cfg config.SourceConfig, timeout time.Duration, opts ...Option) *Client {
	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	if timeout > 0 {
		httpClient.SetTimeout(timeout)
	}
	httpClient.SetHeaders(map[string]string{
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         referer,
		"Cache-Control":   "no-cache",
	})

	c := &Client{
		http:             httpClient,
		teamHistoryLimit: cfg.TeamHistoryLimit,
		loc:              time.UTC,
		clock:            clock.Real(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the records of one work item with the given identity as User-Agent.
func (c *Client) Fetch(ctx context.Context, item model.WorkItem, identity string) (port.RecordSet, error) {
	switch item.Kind {
	case model.KindFixturesByDate:
		return c.fetchFixtures(ctx, item, identity)
	case model.KindTeamHistory:
		return c.fetchTeamHistory(ctx, item, identity)
	case model.KindMatchStats:
		return c.fetchMatchStatistics(ctx, item, identity)
	case model.KindPlayerStats:
		return c.fetchPlayerStatistics(ctx, item, identity)
	default:
		return nil, exception.NewBatchErrorf(moduleName, "item %s: unsupported kind %q", item.ID, item.Kind, retry.ErrHardError)
	}
}

func (c *Client) fetchFixtures(ctx context.Context, item model.WorkItem, identity string) (port.RecordSet, error) {
	var p dateParams
	if err := bindParams(item, &p); err != nil {
		return nil, err
	}
	if _, err := time.ParseInLocation(dateLayout, p.Date, c.loc); err != nil {
		return nil, exception.NewBatchErrorf(moduleName, "item %s: invalid date %q", item.ID, p.Date, errors.Join(retry.ErrHardError, err))
	}

	var resp eventsResponse
	if err := c.get(ctx, "/sport/football/scheduled-events/"+p.Date, identity, &resp); err != nil {
		return nil, err
	}
	// The endpoint spans a timezone window; keep the events of the requested local date.
	kept := resp.Events[:0]
	for _, e := range resp.Events {
		if e.StartTimestamp == 0 || time.Unix(e.StartTimestamp, 0).In(c.loc).Format(dateLayout) == p.Date {
			kept = append(kept, e)
		}
	}
	resp.Events = kept

	fixtures := toFixtures(resp, p.Date, c.clock.Now())
	log.Debugf("%s: %d fixtures", item.ID, len(fixtures))
	out := make(port.RecordSet, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, f)
	}
	return out, nil
}

func (c *Client) fetchTeamHistory(ctx context.Context, item model.WorkItem, identity string) (port.RecordSet, error) {
	var p teamParams
	if err := bindParams(item, &p); err != nil {
		return nil, err
	}
	if p.TeamID <= 0 {
		return nil, missingParam(item, "team_id")
	}

	var resp eventsResponse
	if err := c.get(ctx, fmt.Sprintf("/team/%d/events/last/0", p.TeamID), identity, &resp); err != nil {
		return nil, err
	}
	matches := toTeamMatches(resp, p.TeamID, c.teamHistoryLimit, c.loc, c.clock.Now())
	out := make(port.RecordSet, 0, len(matches))
	for _, m := range matches {
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) fetchMatchStatistics(ctx context.Context, item model.WorkItem, identity string) (port.RecordSet, error) {
	var p eventParams
	if err := bindParams(item, &p); err != nil {
		return nil, err
	}
	if p.EventID <= 0 {
		return nil, missingParam(item, "event_id")
	}

	var resp statisticsResponse
	if err := c.get(ctx, fmt.Sprintf("/event/%d/statistics", p.EventID), identity, &resp); err != nil {
		return nil, err
	}
	stats := toMatchStatistics(resp, p.EventID, c.clock.Now())
	out := make(port.RecordSet, 0, len(stats))
	for _, s := range stats {
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) fetchPlayerStatistics(ctx context.Context, item model.WorkItem, identity string) (port.RecordSet, error) {
	var p eventParams
	if err := bindParams(item, &p); err != nil {
		return nil, err
	}
	if p.EventID <= 0 {
		return nil, missingParam(item, "event_id")
	}

	var resp lineupsResponse
	if err := c.get(ctx, fmt.Sprintf("/event/%d/lineups", p.EventID), identity, &resp); err != nil {
		return nil, err
	}
	players := toPlayerStatistics(resp, p.EventID,
		sideInfo{TeamID: p.HomeTeamID, TeamName: p.HomeTeam},
		sideInfo{TeamID: p.AwayTeamID, TeamName: p.AwayTeam},
		c.clock.Now())
	out := make(port.RecordSet, 0, len(players))
	for _, s := range players {
		out = append(out, s)
	}
	return out, nil
}

// get issues one GET and decodes the JSON body into out. Errors wrap the retry
// classification sentinels.
func (c *Client) get(ctx context.Context, path, identity string, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if identity != "" {
		req.SetHeader("User-Agent", identity)
	}
	resp, err := req.Get(path)
	if err != nil {
		return exception.NewBatchErrorf(moduleName, "GET %s", path, false, true, errors.Join(retry.ErrNetworkError, err))
	}

	code := resp.StatusCode()
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusForbidden && isRateLimitBody(resp.Body()):
		return exception.NewBatchErrorf(moduleName, "GET %s: status %d", path, code, false, true, retry.ErrSoftLimited)
	case code < 200 || code >= 300:
		return exception.NewBatchErrorf(moduleName, "GET %s: status %d", path, code, false, true, retry.ErrHardError)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return exception.NewBatchErrorf(moduleName, "GET %s: undecodable body", path, false, true, errors.Join(retry.ErrHardError, err))
	}
	return nil
}

// isRateLimitBody recognises the challenge page served instead of a 429.
func isRateLimitBody(body []byte) bool {
	s := strings.ToLower(string(body))
	return strings.Contains(s, "challenge") || strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests")
}

func bindParams(item model.WorkItem, target interface{}) error {
	if err := configbinder.BindProperties(item.Params, target); err != nil {
		return exception.NewBatchErrorf(moduleName, "item %s: invalid params", item.ID, errors.Join(retry.ErrHardError, err))
	}
	return nil
}

func missingParam(item model.WorkItem, key string) error {
	return exception.NewBatchErrorf(moduleName, "item %s: missing param %q", item.ID, key, retry.ErrHardError)
}

var _ port.SourceFetcher = (*Client)(nil)
