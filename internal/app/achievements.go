package app

import "daily-quiz-service/internal/domain"

// AchievementRule unlocks Record once Met holds for a finished session.
type AchievementRule struct {
	Record domain.AchievementRecord
	Met    func(summary domain.SessionSummary, stats domain.UserStats) bool
}

// DefaultAchievements is the achievement catalog.
func DefaultAchievements() []AchievementRule {
	return []AchievementRule{
		{
			Record: domain.AchievementRecord{Type: "first_session", Name: "First Steps", Description: "Finish your first daily quiz", PointsReward: 10},
			Met: func(_ domain.SessionSummary, stats domain.UserStats) bool {
				return stats.SessionsCompleted >= 1
			},
		},
		{
			Record: domain.AchievementRecord{Type: "daily_challenge", Name: "Daily Challenger", Description: "Complete the first quiz of a day", PointsReward: 10},
			Met: func(sum domain.SessionSummary, _ domain.UserStats) bool {
				return sum.FirstOfDayBonus > 0
			},
		},
		{
			Record: domain.AchievementRecord{Type: "perfect_game", Name: "Perfect Game", Description: "Answer every question correctly", PointsReward: 50},
			Met: func(sum domain.SessionSummary, _ domain.UserStats) bool {
				return sum.Perfect()
			},
		},
		{
			Record: domain.AchievementRecord{Type: "combo_master", Name: "Combo Master", Description: "Reach a combo of 3 or more", PointsReward: 30},
			Met: func(sum domain.SessionSummary, _ domain.UserStats) bool {
				return sum.MaxCombo >= 3
			},
		},
		{
			Record: domain.AchievementRecord{Type: "points_500", Name: "Saver", Description: "Collect 500 points", PointsReward: 50},
			Met: func(_ domain.SessionSummary, stats domain.UserStats) bool {
				return stats.TotalPoints >= 500
			},
		},
		{
			Record: domain.AchievementRecord{Type: "points_2000", Name: "Big Saver", Description: "Collect 2000 points", PointsReward: 200},
			Met: func(_ domain.SessionSummary, stats domain.UserStats) bool {
				return stats.TotalPoints >= 2000
			},
		},
		{
			Record: domain.AchievementRecord{Type: "sessions_10", Name: "Regular", Description: "Finish 10 daily quizzes", PointsReward: 100},
			Met: func(_ domain.SessionSummary, stats domain.UserStats) bool {
				return stats.SessionsCompleted >= 10
			},
		},
		{
			Record: domain.AchievementRecord{Type: "quiz_master", Name: "Quiz Master", Description: "Finish 100 daily quizzes", PointsReward: 500},
			Met: func(_ domain.SessionSummary, stats domain.UserStats) bool {
				return stats.SessionsCompleted >= 100
			},
		},
	}
}

// eligible returns the rules a finished session satisfies, in catalog order.
func eligible(rules []AchievementRule, sum domain.SessionSummary, stats domain.UserStats) []domain.AchievementRecord {
	var out []domain.AchievementRecord
	for _, r := range rules {
		if r.Met(sum, stats) {
			out = append(out, r.Record)
		}
	}
	return out
}
