package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"
	"warzone-tracker/internal/config"
	"warzone-tracker/internal/constants"
	"warzone-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const baseURL = "https://api.tracker.gg/api/v2/warzone/standard"

// ErrMalformedResponse means the API answered 200 but the body carried
// no data payload (the tracker does this while warming a profile).
var ErrMalformedResponse = errors.New("tracker API response missing data payload")

// StatusError carries a non-200 status code so callers can classify it.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker API status %d", e.Code)
}

func statusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// IsRateLimited reports a 429; back off hard before retrying.
func IsRateLimited(err error) bool {
	code, ok := statusCode(err)
	return ok && code == fasthttp.StatusTooManyRequests
}

// IsFatal reports a 500. Historically these correlated with
// account-level blocking rather than load, so they end the run.
func IsFatal(err error) bool {
	code, ok := statusCode(err)
	return ok && code == fasthttp.StatusInternalServerError
}

// IsUnavailable reports the transient family (503/504/400).
func IsUnavailable(err error) bool {
	code, ok := statusCode(err)
	if !ok {
		return false
	}
	switch code {
	case fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout, fasthttp.StatusBadRequest:
		return true
	}
	return false
}

type TrackerClient struct {
	userAgent string
	cookie    string
	delay     time.Duration
	client    *fasthttp.Client
	logger    zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewTrackerClient(cfg *config.Config, logger zerolog.Logger) *TrackerClient {
	return &TrackerClient{
		userAgent: cfg.TrackerUserAgent,
		cookie:    cfg.TrackerCookie,
		delay:     cfg.RequestDelay,
		client: &fasthttp.Client{
			MaxConnsPerHost:     1,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
		sleep:  time.Sleep,
	}
}

func (c *TrackerClient) MatchHistory(ctx context.Context, player domain.PlayerIdentity, cursor string) (*HistoryResponse, error) {
	u := fmt.Sprintf("%s/matches/%s/%s?type=wz", baseURL, player.Platform, url.QueryEscape(player.Username))
	if cursor != "" {
		u += "&next=" + url.QueryEscape(cursor)
	}
	return doRequest[HistoryResponse](ctx, c, u)
}

func (c *TrackerClient) MatchDetail(ctx context.Context, matchID string) (*MatchDetailResponse, error) {
	u := fmt.Sprintf("%s/matches/%s", baseURL, url.QueryEscape(matchID))
	return doRequest[MatchDetailResponse](ctx, c, u)
}

func (c *TrackerClient) ProfileStats(ctx context.Context, player domain.PlayerIdentity) (*ProfileResponse, error) {
	u := fmt.Sprintf("%s/profile/%s/%s", baseURL, player.Platform, url.QueryEscape(player.Username))
	return doRequest[ProfileResponse](ctx, c, u)
}

// payload lets the shared request path verify the data key is present
// regardless of the concrete response shape.
type payload interface {
	hasData() bool
}

func doRequest[T any, PT interface {
	*T
	payload
}](ctx context.Context, client *TrackerClient, url string) (*T, error) {
	// One in-flight request at a time with an enforced gap; the delay
	// comes before every call, cache hits never reach this path.
	client.sleep(client.delay)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("User-Agent", client.userAgent)
	if client.cookie != "" {
		req.Header.Set("Cookie", client.cookie)
	}

	// Every call runs under a deadline; callers without one get the
	// default so a stalled response cannot hang the pipeline.
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := client.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		client.logger.Warn().Int("status", resp.StatusCode()).Str("url", url).Msg("tracker API error")
		return nil, &StatusError{Code: resp.StatusCode()}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if !PT(&result).hasData() {
		return nil, ErrMalformedResponse
	}
	return &result, nil
}

type HistoryResponse struct {
	Data *HistoryData `json:"data"`
}

func (r *HistoryResponse) hasData() bool { return r.Data != nil }

type HistoryData struct {
	Matches  []HistoryMatch  `json:"matches"`
	Metadata HistoryMetadata `json:"metadata"`
}

type HistoryMetadata struct {
	// Next is the opaque cursor for the following (older) page.
	Next json.Number `json:"next"`
}

type HistoryMatch struct {
	Attributes HistoryMatchAttributes `json:"attributes"`
	Metadata   HistoryMatchMetadata   `json:"metadata"`
}

type HistoryMatchAttributes struct {
	ID     string `json:"id"`
	ModeID string `json:"modeId"`
}

type HistoryMatchMetadata struct {
	Timestamp string `json:"timestamp"`
	Duration  struct {
		Value int64 `json:"value"`
	} `json:"duration"`
}

// TimestampMS converts the ISO-8601 match timestamp to milliseconds
// since epoch, the resolution the history endpoint paginates with.
func (m HistoryMatch) TimestampMS() (int64, error) {
	t, err := time.Parse(time.RFC3339, m.Metadata.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("bad match timestamp %q: %w", m.Metadata.Timestamp, err)
	}
	return t.UnixMilli(), nil
}

type MatchDetailResponse struct {
	Data *MatchDetailData `json:"data"`
}

func (r *MatchDetailResponse) hasData() bool { return r.Data != nil }

type MatchDetailData struct {
	Attributes struct {
		ID     string `json:"id"`
		ModeID string `json:"modeId"`
	} `json:"attributes"`
	Metadata struct {
		Timestamp string `json:"timestamp"`
		Duration  int64  `json:"duration"`
	} `json:"metadata"`
	Segments []MatchSegment `json:"segments"`
}

type MatchSegment struct {
	Attributes SegmentAttributes `json:"attributes"`
	Stats      SegmentStats      `json:"stats"`
}

type SegmentAttributes struct {
	Team                   string         `json:"team"`
	PlatformUserIdentifier string         `json:"platformUserIdentifier"`
	LifeTimeStats          *LifetimeBlock `json:"lifeTimeStats"`
}

// LifetimeBlock is absent entirely for accounts with hidden stats.
type LifetimeBlock struct {
	KDRatio float64 `json:"kdRatio"`
}

type SegmentStats struct {
	Kills            *StatValue `json:"kills"`
	Deaths           *StatValue `json:"deaths"`
	DamageDone       *StatValue `json:"damageDone"`
	TeamSurvivalTime *StatValue `json:"teamSurvivalTime"`
	Headshots        *StatValue `json:"headshots"`
}

type StatValue struct {
	Value float64 `json:"value"`
}

// ValueOr returns the stat value or the sentinel when the payload
// omitted the field entirely.
func (v *StatValue) ValueOr(sentinel float64) float64 {
	if v == nil {
		return sentinel
	}
	return v.Value
}

type ProfileResponse struct {
	Data *ProfileData `json:"data"`
}

func (r *ProfileResponse) hasData() bool { return r.Data != nil }

type ProfileData struct {
	Segments []ProfileSegment `json:"segments"`
}

type ProfileSegment struct {
	Type  string `json:"type"`
	Stats struct {
		KDRatio     *StatValue `json:"kdRatio"`
		Kills       *StatValue `json:"kills"`
		Deaths      *StatValue `json:"deaths"`
		Wins        *StatValue `json:"wins"`
		GamesPlayed *StatValue `json:"gamesPlayed"`
	} `json:"stats"`
}

// Overview returns the lifetime overview segment, if present.
func (d *ProfileData) Overview() *ProfileSegment {
	for i := range d.Segments {
		if d.Segments[i].Type == "overview" {
			return &d.Segments[i]
		}
	}
	return nil
}
