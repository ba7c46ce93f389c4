package sofascore

import (
	"encoding/json"
	"strconv"
	"strings"
)

type eventsResponse struct {
	Events []event `json:"events"`
}

type event struct {
	ID             int64       `json:"id"`
	HomeTeam       team        `json:"homeTeam"`
	AwayTeam       team        `json:"awayTeam"`
	Tournament     tournament  `json:"tournament"`
	StartTimestamp int64       `json:"startTimestamp"`
	Status         eventStatus `json:"status"`
	HomeScore      score       `json:"homeScore"`
	AwayScore      score       `json:"awayScore"`
}

type team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tournament struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category struct {
		Name string `json:"name"`
	} `json:"category"`
}

type eventStatus struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type score struct {
	Current *int64 `json:"current"`
}

type statisticsResponse struct {
	Statistics []statisticsPeriod `json:"statistics"`
}

type statisticsPeriod struct {
	Period string `json:"period"`
	Groups []struct {
		GroupName       string           `json:"groupName"`
		StatisticsItems []statisticsItem `json:"statisticsItems"`
	} `json:"groups"`
}

type statisticsItem struct {
	Name      string          `json:"name"`
	Key       string          `json:"key"`
	Home      json.RawMessage `json:"home"`
	Away      json.RawMessage `json:"away"`
	HomeValue *float64        `json:"homeValue"`
	AwayValue *float64        `json:"awayValue"`
}

type lineupsResponse struct {
	Confirmed bool       `json:"confirmed"`
	Home      lineupSide `json:"home"`
	Away      lineupSide `json:"away"`
}

type lineupSide struct {
	TeamID    *int64         `json:"teamId"`
	TeamName  string         `json:"teamName"`
	Formation string         `json:"formation"`
	Players   []lineupPlayer `json:"players"`
}

type lineupPlayer struct {
	Player struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Position string `json:"position"`
	} `json:"player"`
	ShirtNumber *int64      `json:"shirtNumber"`
	Substitute  bool        `json:"substitute"`
	Statistics  playerStats `json:"statistics"`
}

type playerStats struct {
	Rating         *float64 `json:"rating"`
	MinutesPlayed  *int64   `json:"minutesPlayed"`
	Goals          *int64   `json:"goals"`
	GoalAssist     *int64   `json:"goalAssist"`
	TotalShots     *int64   `json:"totalShots"`
	AccuratePasses *int64   `json:"accuratePasses"`
	TotalPasses    *int64   `json:"totalPasses"`
	KeyPass        *int64   `json:"keyPass"`
	Tackles        *int64   `json:"tackles"`
	Interceptions  *int64   `json:"interceptions"`
	YellowCards    *int64   `json:"yellowCards"`
	RedCards       *int64   `json:"redCards"`
}

// statValue reads a displayed statistic such as 54, "54%", "1.32" or "8/10 (80%)".
// The leading number is returned.
func statValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "%/ ("); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
