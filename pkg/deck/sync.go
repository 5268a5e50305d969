package deck

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"englishtutorbot/pkg/sheets"
)

// SyncResult summarizes one deck sync pass.
type SyncResult struct {
	Added   int
	Updated int
	Errors  int
	Total   int
}

// SyncCards merges spreadsheet rows into the local mirror, keyed by the
// English phrase. Local progress is kept when the sheet has no value;
// otherwise the sheet wins so manual edits propagate.
func (s *Store) SyncCards(ctx context.Context, rows []sheets.CardRow) (SyncResult, error) {
	result := SyncResult{}

	for _, row := range rows {
		english := strings.TrimSpace(row.English)
		if english == "" {
			result.Errors++
			continue
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing Phrase
			err := tx.Where("english = ?", english).Take(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				phrase := Phrase{
					English:    english,
					Russian:    strings.TrimSpace(row.Russian),
					Example:    strings.TrimSpace(row.Example),
					Difficulty: Difficulty(english),
					SheetRow:   row.RowNumber,
					Progress:   row.Progress,
					Learned:    row.Progress >= s.learnedThreshold,
				}
				if err := tx.Create(&phrase).Error; err != nil {
					return fmt.Errorf("create '%s': %w", english, err)
				}
				result.Added++
				return nil
			}
			if err != nil {
				return fmt.Errorf("lookup '%s': %w", english, err)
			}

			updates := map[string]interface{}{
				"russian":    strings.TrimSpace(row.Russian),
				"example":    strings.TrimSpace(row.Example),
				"difficulty": Difficulty(english),
				"sheet_row":  row.RowNumber,
			}
			if row.Progress > existing.Progress {
				updates["progress"] = row.Progress
				updates["learned"] = row.Progress >= s.learnedThreshold
			}
			if err := tx.Model(&Phrase{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("update '%s': %w", english, err)
			}
			result.Updated++
			return nil
		})
		if err != nil {
			log.Printf("[SyncCards] Row %d failed: %v", row.RowNumber, err)
			result.Errors++
		}
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Phrase{}).Count(&total).Error; err != nil {
		return result, fmt.Errorf("deck: count after sync: %w", err)
	}
	result.Total = int(total)

	log.Printf("[SyncCards] Sync finished: %d added, %d updated, %d errors, %d total",
		result.Added, result.Updated, result.Errors, result.Total)
	return result, nil
}

// UnsyncedProgress returns phrases whose local progress is ahead of the
// sheet row, for write-back after a lesson.
func (s *Store) UnsyncedProgress(ctx context.Context) ([]Phrase, error) {
	var phrases []Phrase
	err := s.db.WithContext(ctx).
		Where("sheet_row > 0").
		Find(&phrases).Error
	if err != nil {
		return nil, fmt.Errorf("deck: list phrases for write-back: %w", err)
	}
	return phrases, nil
}
