package sofascore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tigerroll/matchday/internal/records"
)

func toFixtures(resp eventsResponse, date string, now time.Time) []records.Fixture {
	out := make([]records.Fixture, 0, len(resp.Events))
	for _, e := range resp.Events {
		if e.ID == 0 {
			continue
		}
		f := records.Fixture{
			MatchID:        e.ID,
			Date:           date,
			Tournament:     e.Tournament.Name,
			Country:        e.Tournament.Category.Name,
			HomeTeamID:     e.HomeTeam.ID,
			HomeTeam:       e.HomeTeam.Name,
			AwayTeamID:     e.AwayTeam.ID,
			AwayTeam:       e.AwayTeam.Name,
			HomeScore:      e.HomeScore.Current,
			AwayScore:      e.AwayScore.Current,
			Status:         e.Status.Type,
			StartTimestamp: e.StartTimestamp,
			CollectedAt:    now,
		}
		if e.Tournament.ID != 0 {
			f.TournamentID = records.Int64(e.Tournament.ID)
		}
		out = append(out, f)
	}
	return out
}

// toTeamMatches keeps the finished events, newest first, up to limit.
func toTeamMatches(resp eventsResponse, teamID int64, limit int, loc *time.Location, now time.Time) []records.TeamMatch {
	finished := make([]event, 0, len(resp.Events))
	for _, e := range resp.Events {
		if e.Status.Type == records.StatusFinished {
			finished = append(finished, e)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		return finished[i].StartTimestamp > finished[j].StartTimestamp
	})
	if limit > 0 && len(finished) > limit {
		finished = finished[:limit]
	}

	out := make([]records.TeamMatch, 0, len(finished))
	for _, e := range finished {
		isHome := e.HomeTeam.ID == teamID
		home, away := valueOr(e.HomeScore.Current), valueOr(e.AwayScore.Current)
		m := records.TeamMatch{
			TeamID:      teamID,
			MatchID:     e.ID,
			Date:        time.Unix(e.StartTimestamp, 0).In(loc).Format(dateLayout),
			Tournament:  e.Tournament.Name,
			CollectedAt: now,
		}
		if isHome {
			m.OpponentID, m.Opponent, m.Venue = e.AwayTeam.ID, e.AwayTeam.Name, "H"
			m.GoalsFor, m.GoalsAgainst = home, away
		} else {
			m.OpponentID, m.Opponent, m.Venue = e.HomeTeam.ID, e.HomeTeam.Name, "A"
			m.GoalsFor, m.GoalsAgainst = away, home
		}
		m.Score = fmt.Sprintf("%d-%d", m.GoalsFor, m.GoalsAgainst)
		switch {
		case m.GoalsFor > m.GoalsAgainst:
			m.Result = "W"
		case m.GoalsFor < m.GoalsAgainst:
			m.Result = "L"
		default:
			m.Result = "D"
		}
		out = append(out, m)
	}
	return out
}

func valueOr(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// toMatchStatistics returns one row per known period that carries at least one tracked statistic.
func toMatchStatistics(resp statisticsResponse, matchID int64, now time.Time) []records.MatchStatistic {
	out := make([]records.MatchStatistic, 0, len(resp.Statistics))
	for _, period := range resp.Statistics {
		switch period.Period {
		case records.PeriodAll, records.PeriodFirst, records.PeriodSecond:
		default:
			continue
		}
		row := records.MatchStatistic{MatchID: matchID, Period: period.Period, CollectedAt: now}
		tracked := 0
		for _, group := range period.Groups {
			for _, item := range group.StatisticsItems {
				home, away, ok := statFields(&row, item.Name)
				if !ok {
					continue
				}
				tracked++
				*home = itemValue(item.HomeValue, item.Home)
				*away = itemValue(item.AwayValue, item.Away)
			}
		}
		if tracked > 0 {
			out = append(out, row)
		}
	}
	return out
}

func itemValue(numeric *float64, display []byte) *float64 {
	if numeric != nil {
		return records.Float64(*numeric)
	}
	if v, ok := statValue(display); ok {
		return records.Float64(v)
	}
	return nil
}

// statFields maps a statistic display name to its home and away columns.
func statFields(s *records.MatchStatistic, name string) (home, away **float64, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ball possession":
		return &s.BallPossessionHome, &s.BallPossessionAway, true
	case "expected goals":
		return &s.ExpectedGoalsHome, &s.ExpectedGoalsAway, true
	case "total shots":
		return &s.TotalShotsHome, &s.TotalShotsAway, true
	case "shots on target":
		return &s.ShotsOnTargetHome, &s.ShotsOnTargetAway, true
	case "big chances":
		return &s.BigChancesHome, &s.BigChancesAway, true
	case "corner kicks":
		return &s.CornerKicksHome, &s.CornerKicksAway, true
	case "fouls":
		return &s.FoulsHome, &s.FoulsAway, true
	case "passes":
		return &s.PassesHome, &s.PassesAway, true
	case "accurate passes":
		return &s.AccuratePassesHome, &s.AccuratePassesAway, true
	case "tackles", "total tackles":
		return &s.TacklesHome, &s.TacklesAway, true
	case "goalkeeper saves", "total saves":
		return &s.GoalkeeperSavesHome, &s.GoalkeeperSavesAway, true
	case "offsides":
		return &s.OffsidesHome, &s.OffsidesAway, true
	}
	return nil, nil, false
}

// sideInfo names a lineup side when the response itself omits the team.
type sideInfo struct {
	TeamID   int64
	TeamName string
}

func toPlayerStatistics(resp lineupsResponse, matchID int64, home, away sideInfo, now time.Time) []records.PlayerStatistic {
	out := make([]records.PlayerStatistic, 0, len(resp.Home.Players)+len(resp.Away.Players))
	out = appendSide(out, resp.Home, matchID, home, now)
	return appendSide(out, resp.Away, matchID, away, now)
}

func appendSide(out []records.PlayerStatistic, side lineupSide, matchID int64, info sideInfo, now time.Time) []records.PlayerStatistic {
	if side.TeamID != nil {
		info.TeamID = *side.TeamID
	}
	if side.TeamName != "" {
		info.TeamName = side.TeamName
	}
	for _, p := range side.Players {
		if p.Player.ID == 0 {
			continue
		}
		st := p.Statistics
		out = append(out, records.PlayerStatistic{
			MatchID:        matchID,
			PlayerID:       p.Player.ID,
			TeamID:         info.TeamID,
			TeamName:       info.TeamName,
			PlayerName:     p.Player.Name,
			Position:       p.Player.Position,
			ShirtNumber:    p.ShirtNumber,
			Substitute:     p.Substitute,
			MinutesPlayed:  st.MinutesPlayed,
			Rating:         st.Rating,
			Goals:          st.Goals,
			Assists:        st.GoalAssist,
			TotalShots:     st.TotalShots,
			TotalPasses:    st.TotalPasses,
			AccuratePasses: st.AccuratePasses,
			KeyPasses:      st.KeyPass,
			Tackles:        st.Tackles,
			Interceptions:  st.Interceptions,
			YellowCards:    st.YellowCards,
			RedCards:       st.RedCards,
			CollectedAt:    now,
		})
	}
	return out
}
