package deck

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the local SQLite mirror of the phrase deck plus the answer
// history. It exists so lessons keep working while the spreadsheet is slow
// or unreachable.
type Store struct {
	db               *gorm.DB
	learnedThreshold float64
}

// Open creates or opens the mirror database at path (":memory:" for tests).
func Open(path string, learnedThreshold float64) (*Store, error) {
	if learnedThreshold <= 0 {
		return nil, fmt.Errorf("deck: learned threshold must be positive, got %v", learnedThreshold)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("deck: open database '%s': %w", path, err)
	}

	store := &Store{db: db, learnedThreshold: learnedThreshold}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&Phrase{}, &AnswerRecord{}); err != nil {
		return fmt.Errorf("deck: migrate: %w", err)
	}
	return nil
}

// DrawLesson picks n phrases for a lesson, unlearned ones first, newest gaps
// filled with learned phrases for review when the unlearned pool runs short.
func (s *Store) DrawLesson(ctx context.Context, n int) ([]Phrase, error) {
	if n <= 0 {
		return nil, nil
	}

	var phrases []Phrase
	err := s.db.WithContext(ctx).
		Where("learned = ?", false).
		Order("RANDOM()").
		Limit(n).
		Find(&phrases).Error
	if err != nil {
		return nil, fmt.Errorf("deck: draw lesson: %w", err)
	}

	if len(phrases) < n {
		var review []Phrase
		err = s.db.WithContext(ctx).
			Where("learned = ?", true).
			Order("RANDOM()").
			Limit(n - len(phrases)).
			Find(&review).Error
		if err != nil {
			return nil, fmt.Errorf("deck: draw review phrases: %w", err)
		}
		phrases = append(phrases, review...)
	}

	return phrases, nil
}

// RecordAnswer appends the graded answer to the history and accumulates the
// score onto the phrase's progress, flipping it to learned at the threshold.
// It returns the phrase's new progress and whether it just became learned.
func (s *Store) RecordAnswer(ctx context.Context, userID int64, phraseID uint, answer string, score float64, direction string) (float64, bool, error) {
	var newProgress float64
	becameLearned := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var phrase Phrase
		if err := tx.Take(&phrase, phraseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("deck: phrase %d not found", phraseID)
			}
			return fmt.Errorf("deck: load phrase %d: %w", phraseID, err)
		}

		record := AnswerRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			PhraseID:  phraseID,
			Answer:    answer,
			Score:     score,
			Direction: direction,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("deck: record answer: %w", err)
		}

		phrase.Progress += score
		if !phrase.Learned && phrase.Progress >= s.learnedThreshold {
			phrase.Learned = true
			becameLearned = true
		}
		newProgress = phrase.Progress

		if err := tx.Model(&Phrase{}).Where("id = ?", phrase.ID).
			Updates(map[string]interface{}{"progress": phrase.Progress, "learned": phrase.Learned}).Error; err != nil {
			return fmt.Errorf("deck: update progress for phrase %d: %w", phrase.ID, err)
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return newProgress, becameLearned, nil
}

// Counts reports deck totals for the stats command.
func (s *Store) Counts(ctx context.Context) (total, learned int64, err error) {
	if err = s.db.WithContext(ctx).Model(&Phrase{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("deck: count phrases: %w", err)
	}
	if err = s.db.WithContext(ctx).Model(&Phrase{}).Where("learned = ?", true).Count(&learned).Error; err != nil {
		return 0, 0, fmt.Errorf("deck: count learned: %w", err)
	}
	return total, learned, nil
}

// Difficulty classifies a phrase by word count, the rule the original sheet
// curation used.
func Difficulty(english string) string {
	words := len(strings.Fields(english))
	switch {
	case words <= 3:
		return DifficultyEasy
	case words <= 8:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}
