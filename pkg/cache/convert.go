package cache

import (
	"time"

	"englishtutorbot/pkg/sheets"
	"englishtutorbot/pkg/state"
)

func profileFromRow(row sheets.ProfileRow) state.UserProfile {
	return state.UserProfile{
		UserID:         row.UserID,
		UserName:       row.UserName,
		PhrasesSeen:    row.PhrasesSeen,
		CorrectAnswers: row.CorrectAnswers,
		LearnedPhrases: row.LearnedPhrases,
		TotalScore:     row.TotalScore,
		CurrentDeck:    row.CurrentDeck,
		LessonIndex:    row.LessonIndex,
		LastSeen:       row.LastSeen,
		AutoPractice:   row.AutoPractice,
		AutoInterval:   time.Duration(row.AutoIntervalMin) * time.Minute,
		LastAuto:       row.LastAuto,
	}
}

func rowFromProfile(p state.UserProfile) sheets.ProfileRow {
	return sheets.ProfileRow{
		UserID:          p.UserID,
		UserName:        p.UserName,
		PhrasesSeen:     p.PhrasesSeen,
		CorrectAnswers:  p.CorrectAnswers,
		LearnedPhrases:  p.LearnedPhrases,
		TotalScore:      p.TotalScore,
		CurrentDeck:     p.CurrentDeck,
		LessonIndex:     p.LessonIndex,
		LastSeen:        p.LastSeen,
		AutoPractice:    p.AutoPractice,
		AutoIntervalMin: int(p.AutoInterval / time.Minute),
		LastAuto:        p.LastAuto,
	}
}
