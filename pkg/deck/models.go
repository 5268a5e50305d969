package deck

import "time"

// Phrase is one row of the local mirror of the sheet's content tab.
// SheetRow remembers where the phrase came from so accumulated progress can
// be written back to the right cell.
type Phrase struct {
	ID         uint   `gorm:"primaryKey"`
	English    string `gorm:"uniqueIndex;not null"`
	Russian    string `gorm:"not null"`
	Example    string
	Difficulty string `gorm:"index"`
	SheetRow   int
	Progress   float64
	Learned    bool `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AnswerRecord is the local append-only history of graded answers.
type AnswerRecord struct {
	ID        string `gorm:"primaryKey"`
	UserID    int64  `gorm:"index"`
	PhraseID  uint   `gorm:"index"`
	Answer    string
	Score     float64
	Direction string
	CreatedAt time.Time
}

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)
