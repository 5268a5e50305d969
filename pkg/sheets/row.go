package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed column layouts for the three tabs the bot touches. Rows are validated
// here, at the gateway boundary; a row that does not parse is a schema
// mismatch and therefore a Permanent failure.

// ProfileRow mirrors one row of the profiles tab (columns A:L):
// user id, name, phrases seen, correct answers, learned phrases, total score,
// current deck, lesson index, last seen (RFC 3339), auto practice flag,
// auto practice interval in minutes, last auto practice (RFC 3339). The
// three auto columns are optional so rows written before they existed
// still parse.
type ProfileRow struct {
	UserID          int64
	UserName        string
	PhrasesSeen     int
	CorrectAnswers  int
	LearnedPhrases  int
	TotalScore      float64
	CurrentDeck     string
	LessonIndex     int
	LastSeen        time.Time
	AutoPractice    bool
	AutoIntervalMin int
	LastAuto        time.Time
}

const profileColumns = 9

// ParseProfileRow validates and decodes a raw profiles-tab row.
func ParseProfileRow(cells []string) (ProfileRow, error) {
	if len(cells) < profileColumns {
		return ProfileRow{}, fmt.Errorf("profile row has %d columns, want %d", len(cells), profileColumns)
	}

	var row ProfileRow
	var err error

	if row.UserID, err = strconv.ParseInt(strings.TrimSpace(cells[0]), 10, 64); err != nil {
		return ProfileRow{}, fmt.Errorf("profile row: bad user id %q: %w", cells[0], err)
	}
	row.UserName = cells[1]
	if row.PhrasesSeen, err = parseIntCell(cells[2], "phrases seen"); err != nil {
		return ProfileRow{}, err
	}
	if row.CorrectAnswers, err = parseIntCell(cells[3], "correct answers"); err != nil {
		return ProfileRow{}, err
	}
	if row.LearnedPhrases, err = parseIntCell(cells[4], "learned phrases"); err != nil {
		return ProfileRow{}, err
	}
	if row.TotalScore, err = parseFloatCell(cells[5], "total score"); err != nil {
		return ProfileRow{}, err
	}
	row.CurrentDeck = cells[6]
	if row.LessonIndex, err = parseIntCell(cells[7], "lesson index"); err != nil {
		return ProfileRow{}, err
	}
	if raw := strings.TrimSpace(cells[8]); raw != "" {
		if row.LastSeen, err = time.Parse(time.RFC3339, raw); err != nil {
			return ProfileRow{}, fmt.Errorf("profile row: bad last seen %q: %w", raw, err)
		}
	}
	if len(cells) > 9 {
		row.AutoPractice = strings.TrimSpace(cells[9]) == "1"
	}
	if len(cells) > 10 {
		if row.AutoIntervalMin, err = parseIntCell(cells[10], "auto interval"); err != nil {
			return ProfileRow{}, err
		}
	}
	if len(cells) > 11 {
		if raw := strings.TrimSpace(cells[11]); raw != "" {
			if row.LastAuto, err = time.Parse(time.RFC3339, raw); err != nil {
				return ProfileRow{}, fmt.Errorf("profile row: bad last auto practice %q: %w", raw, err)
			}
		}
	}
	return row, nil
}

// Values encodes the row back into its sheet representation.
func (r ProfileRow) Values() []string {
	lastSeen := ""
	if !r.LastSeen.IsZero() {
		lastSeen = r.LastSeen.UTC().Format(time.RFC3339)
	}
	auto := "0"
	if r.AutoPractice {
		auto = "1"
	}
	lastAuto := ""
	if !r.LastAuto.IsZero() {
		lastAuto = r.LastAuto.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(r.UserID, 10),
		r.UserName,
		strconv.Itoa(r.PhrasesSeen),
		strconv.Itoa(r.CorrectAnswers),
		strconv.Itoa(r.LearnedPhrases),
		strconv.FormatFloat(r.TotalScore, 'f', 2, 64),
		r.CurrentDeck,
		strconv.Itoa(r.LessonIndex),
		lastSeen,
		auto,
		strconv.Itoa(r.AutoIntervalMin),
		lastAuto,
	}
}

// CardRow mirrors one row of the content tab (columns A:E):
// date added, english text, russian text, usage example, progress.
type CardRow struct {
	RowNumber int
	Date      string
	English   string
	Russian   string
	Example   string
	Progress  float64
}

// ParseCardRows decodes the content tab, skipping the header and any row
// missing its english or russian text, the way the original sheet is
// maintained by hand.
func ParseCardRows(values [][]string) ([]CardRow, int) {
	var cards []CardRow
	skipped := 0
	for i, cells := range values {
		if i == 0 {
			continue // header
		}
		if len(cells) < 3 || strings.TrimSpace(cells[1]) == "" || strings.TrimSpace(cells[2]) == "" {
			skipped++
			continue
		}
		card := CardRow{
			RowNumber: i + 1,
			Date:      cells[0],
			English:   strings.TrimSpace(cells[1]),
			Russian:   strings.TrimSpace(cells[2]),
		}
		if len(cells) > 3 {
			card.Example = strings.TrimSpace(cells[3])
		}
		if len(cells) > 4 {
			card.Progress, _ = parseFloatCell(cells[4], "progress")
		}
		cards = append(cards, card)
	}
	return cards, skipped
}

// LogEntry is one append-only row of the grading log tab (columns A:F):
// entry id, user id, phrase, answer given, score, timestamp.
type LogEntry struct {
	ID     string
	UserID int64
	Phrase string
	Answer string
	Score  float64
	At     time.Time
}

func (e LogEntry) Values() []string {
	return []string{
		e.ID,
		strconv.FormatInt(e.UserID, 10),
		e.Phrase,
		e.Answer,
		strconv.FormatFloat(e.Score, 'f', 2, 64),
		e.At.UTC().Format(time.RFC3339),
	}
}

func parseIntCell(cell, field string) (int, error) {
	raw := strings.TrimSpace(cell)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("profile row: bad %s %q: %w", field, raw, err)
	}
	return v, nil
}

func parseFloatCell(cell, field string) (float64, error) {
	raw := strings.TrimSpace(cell)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", field, raw, err)
	}
	return v, nil
}
