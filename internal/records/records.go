// Package records defines the football records produced by the Sofascore source and
// persisted by the store. Struct tags drive both the GORM mapping and the parquet export.
package records

import "time"

// Table names.
const (
	TableFixtures         = "fixtures"
	TableTeamMatches      = "team_matches"
	TableMatchStatistics  = "match_statistics"
	TablePlayerStatistics = "player_statistics"
	TableScrapingLog      = "scraping_log"
)

// Fixture statuses reported by the source.
const (
	StatusFinished   = "finished"
	StatusNotStarted = "notstarted"
	StatusInProgress = "inprogress"
)

// Periods of a match statistics breakdown.
const (
	PeriodAll    = "ALL"
	PeriodFirst  = "1ST"
	PeriodSecond = "2ND"
)

// Fixture is one scheduled event of a date. Natural key: match_id.
type Fixture struct {
	MatchID        int64     `gorm:"column:match_id;primaryKey;autoIncrement:false" parquet:"name=match_id, type=INT64"`
	Date           string    `gorm:"column:date;index:idx_fixtures_date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	TournamentID   *int64    `gorm:"column:tournament_id" parquet:"name=tournament_id, type=INT64, repetitiontype=OPTIONAL"`
	Tournament     string    `gorm:"column:tournament" parquet:"name=tournament, type=BYTE_ARRAY, convertedtype=UTF8"`
	Country        string    `gorm:"column:country" parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8"`
	HomeTeamID     int64     `gorm:"column:home_team_id" parquet:"name=home_team_id, type=INT64"`
	HomeTeam       string    `gorm:"column:home_team" parquet:"name=home_team, type=BYTE_ARRAY, convertedtype=UTF8"`
	AwayTeamID     int64     `gorm:"column:away_team_id" parquet:"name=away_team_id, type=INT64"`
	AwayTeam       string    `gorm:"column:away_team" parquet:"name=away_team, type=BYTE_ARRAY, convertedtype=UTF8"`
	HomeScore      *int64    `gorm:"column:home_score" parquet:"name=home_score, type=INT64, repetitiontype=OPTIONAL"`
	AwayScore      *int64    `gorm:"column:away_score" parquet:"name=away_score, type=INT64, repetitiontype=OPTIONAL"`
	Status         string    `gorm:"column:status" parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartTimestamp int64     `gorm:"column:start_timestamp" parquet:"name=start_timestamp, type=INT64"`
	CollectedAt    time.Time `gorm:"column:collected_at"`
}

func (Fixture) TableName() string { return TableFixtures }

// IsFinished reports whether the match has a final result.
func (f Fixture) IsFinished() bool { return f.Status == StatusFinished }

// TeamMatch is one past result seen from a team's side. Natural key: (team_id, match_id).
type TeamMatch struct {
	TeamID       int64     `gorm:"column:team_id;primaryKey;autoIncrement:false" parquet:"name=team_id, type=INT64"`
	MatchID      int64     `gorm:"column:match_id;primaryKey;autoIncrement:false" parquet:"name=match_id, type=INT64"`
	Date         string    `gorm:"column:date" parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpponentID   int64     `gorm:"column:opponent_id" parquet:"name=opponent_id, type=INT64"`
	Opponent     string    `gorm:"column:opponent" parquet:"name=opponent, type=BYTE_ARRAY, convertedtype=UTF8"`
	Venue        string    `gorm:"column:venue" parquet:"name=venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	GoalsFor     int64     `gorm:"column:goals_for" parquet:"name=goals_for, type=INT64"`
	GoalsAgainst int64     `gorm:"column:goals_against" parquet:"name=goals_against, type=INT64"`
	Score        string    `gorm:"column:score" parquet:"name=score, type=BYTE_ARRAY, convertedtype=UTF8"`
	Result       string    `gorm:"column:result" parquet:"name=result, type=BYTE_ARRAY, convertedtype=UTF8"`
	Tournament   string    `gorm:"column:tournament" parquet:"name=tournament, type=BYTE_ARRAY, convertedtype=UTF8"`
	CollectedAt  time.Time `gorm:"column:collected_at"`
}

func (TeamMatch) TableName() string { return TableTeamMatches }

// MatchStatistic holds the tracked team statistics of one period. Natural key: (match_id, period).
type MatchStatistic struct {
	MatchID             int64     `gorm:"column:match_id;primaryKey;autoIncrement:false" parquet:"name=match_id, type=INT64"`
	Period              string    `gorm:"column:period;primaryKey" parquet:"name=period, type=BYTE_ARRAY, convertedtype=UTF8"`
	BallPossessionHome  *float64  `gorm:"column:ball_possession_home" parquet:"name=ball_possession_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	BallPossessionAway  *float64  `gorm:"column:ball_possession_away" parquet:"name=ball_possession_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	ExpectedGoalsHome   *float64  `gorm:"column:expected_goals_home" parquet:"name=expected_goals_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	ExpectedGoalsAway   *float64  `gorm:"column:expected_goals_away" parquet:"name=expected_goals_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalShotsHome      *float64  `gorm:"column:total_shots_home" parquet:"name=total_shots_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	TotalShotsAway      *float64  `gorm:"column:total_shots_away" parquet:"name=total_shots_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	ShotsOnTargetHome   *float64  `gorm:"column:shots_on_target_home" parquet:"name=shots_on_target_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	ShotsOnTargetAway   *float64  `gorm:"column:shots_on_target_away" parquet:"name=shots_on_target_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	BigChancesHome      *float64  `gorm:"column:big_chances_home" parquet:"name=big_chances_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	BigChancesAway      *float64  `gorm:"column:big_chances_away" parquet:"name=big_chances_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	CornerKicksHome     *float64  `gorm:"column:corner_kicks_home" parquet:"name=corner_kicks_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	CornerKicksAway     *float64  `gorm:"column:corner_kicks_away" parquet:"name=corner_kicks_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	FoulsHome           *float64  `gorm:"column:fouls_home" parquet:"name=fouls_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	FoulsAway           *float64  `gorm:"column:fouls_away" parquet:"name=fouls_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	PassesHome          *float64  `gorm:"column:passes_home" parquet:"name=passes_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	PassesAway          *float64  `gorm:"column:passes_away" parquet:"name=passes_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	AccuratePassesHome  *float64  `gorm:"column:accurate_passes_home" parquet:"name=accurate_passes_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	AccuratePassesAway  *float64  `gorm:"column:accurate_passes_away" parquet:"name=accurate_passes_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	TacklesHome         *float64  `gorm:"column:tackles_home" parquet:"name=tackles_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	TacklesAway         *float64  `gorm:"column:tackles_away" parquet:"name=tackles_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	GoalkeeperSavesHome *float64  `gorm:"column:goalkeeper_saves_home" parquet:"name=goalkeeper_saves_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	GoalkeeperSavesAway *float64  `gorm:"column:goalkeeper_saves_away" parquet:"name=goalkeeper_saves_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	OffsidesHome        *float64  `gorm:"column:offsides_home" parquet:"name=offsides_home, type=DOUBLE, repetitiontype=OPTIONAL"`
	OffsidesAway        *float64  `gorm:"column:offsides_away" parquet:"name=offsides_away, type=DOUBLE, repetitiontype=OPTIONAL"`
	CollectedAt         time.Time `gorm:"column:collected_at"`
}

func (MatchStatistic) TableName() string { return TableMatchStatistics }

// PlayerStatistic is one lineup entry with its match statistics. Natural key: (match_id, player_id).
type PlayerStatistic struct {
	MatchID        int64     `gorm:"column:match_id;primaryKey;autoIncrement:false" parquet:"name=match_id, type=INT64"`
	PlayerID       int64     `gorm:"column:player_id;primaryKey;autoIncrement:false" parquet:"name=player_id, type=INT64"`
	TeamID         int64     `gorm:"column:team_id" parquet:"name=team_id, type=INT64"`
	TeamName       string    `gorm:"column:team_name" parquet:"name=team_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlayerName     string    `gorm:"column:player_name" parquet:"name=player_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Position       string    `gorm:"column:position" parquet:"name=position, type=BYTE_ARRAY, convertedtype=UTF8"`
	ShirtNumber    *int64    `gorm:"column:shirt_number" parquet:"name=shirt_number, type=INT64, repetitiontype=OPTIONAL"`
	Substitute     bool      `gorm:"column:substitute" parquet:"name=substitute, type=BOOLEAN"`
	MinutesPlayed  *int64    `gorm:"column:minutes_played" parquet:"name=minutes_played, type=INT64, repetitiontype=OPTIONAL"`
	Rating         *float64  `gorm:"column:rating" parquet:"name=rating, type=DOUBLE, repetitiontype=OPTIONAL"`
	Goals          *int64    `gorm:"column:goals" parquet:"name=goals, type=INT64, repetitiontype=OPTIONAL"`
	Assists        *int64    `gorm:"column:assists" parquet:"name=assists, type=INT64, repetitiontype=OPTIONAL"`
	TotalShots     *int64    `gorm:"column:total_shots" parquet:"name=total_shots, type=INT64, repetitiontype=OPTIONAL"`
	TotalPasses    *int64    `gorm:"column:total_passes" parquet:"name=total_passes, type=INT64, repetitiontype=OPTIONAL"`
	AccuratePasses *int64    `gorm:"column:accurate_passes" parquet:"name=accurate_passes, type=INT64, repetitiontype=OPTIONAL"`
	KeyPasses      *int64    `gorm:"column:key_passes" parquet:"name=key_passes, type=INT64, repetitiontype=OPTIONAL"`
	Tackles        *int64    `gorm:"column:tackles" parquet:"name=tackles, type=INT64, repetitiontype=OPTIONAL"`
	Interceptions  *int64    `gorm:"column:interceptions" parquet:"name=interceptions, type=INT64, repetitiontype=OPTIONAL"`
	YellowCards    *int64    `gorm:"column:yellow_cards" parquet:"name=yellow_cards, type=INT64, repetitiontype=OPTIONAL"`
	RedCards       *int64    `gorm:"column:red_cards" parquet:"name=red_cards, type=INT64, repetitiontype=OPTIONAL"`
	CollectedAt    time.Time `gorm:"column:collected_at"`
}

func (PlayerStatistic) TableName() string { return TablePlayerStatistics }

// ScrapingLog is an append-only audit row written with every store acknowledgement.
type ScrapingLog struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ScrapeType   string    `gorm:"column:scrape_type"`
	ItemID       string    `gorm:"column:item_id"`
	Status       string    `gorm:"column:status"`
	RecordsCount int       `gorm:"column:records_count"`
	ErrorMessage string    `gorm:"column:error_message"`
	ScrapedAt    time.Time `gorm:"column:scraped_at"`
}

func (ScrapingLog) TableName() string { return TableScrapingLog }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
