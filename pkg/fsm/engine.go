package fsm

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"englishtutorbot/pkg/config"
	"englishtutorbot/pkg/deck"
	"englishtutorbot/pkg/dispatch"
	"englishtutorbot/pkg/sheets"
	"englishtutorbot/pkg/state"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// ProfileCache is the engine's view of the learning profile cache.
type ProfileCache interface {
	Get(ctx context.Context, userID int64, userName string) (state.UserProfile, error)
	MarkDirty(userID int64, profile state.UserProfile)
	FlushUser(ctx context.Context, userID int64) error
}

// DeckService is the engine's view of the local phrase deck.
type DeckService interface {
	DrawLesson(ctx context.Context, n int) ([]deck.Phrase, error)
	RecordAnswer(ctx context.Context, userID int64, phraseID uint, answer string, score float64, direction string) (float64, bool, error)
	Counts(ctx context.Context) (total, learned int64, err error)
	SyncCards(ctx context.Context, rows []sheets.CardRow) (deck.SyncResult, error)
}

// RemoteGateway is the engine's view of the spreadsheet gateway. All calls
// through it may block on rate limiting, so the engine only uses it off the
// message path or behind short timeouts.
type RemoteGateway interface {
	AppendLog(ctx context.Context, entry sheets.LogEntry) error
	FetchDeck(ctx context.Context) ([]sheets.CardRow, error)
	UpdateCardProgress(ctx context.Context, rowNumber int, progress float64) error
}

// Outbox delivers replies without blocking the update handler.
type Outbox interface {
	Enqueue(msg dispatch.Outbound) bool
	Typing(userID int64)
}

// Engine drives the lesson conversation. One instance serves all users;
// per-user serialization happens through SessionState.Mu.
type Engine struct {
	Store  *state.Store
	Cache  ProfileCache
	Deck   DeckService
	Remote RemoteGateway
	Out    Outbox
	Grader Grader
	Cfg    *config.LessonConfig
}

func NewEngine(store *state.Store, cache ProfileCache, deckSvc DeckService, remote RemoteGateway, out Outbox, cfg *config.LessonConfig) *Engine {
	return &Engine{
		Store:  store,
		Cache:  cache,
		Deck:   deckSvc,
		Remote: remote,
		Out:    out,
		Grader: &HeuristicGrader{},
		Cfg:    cfg,
	}
}

// HandleUpdate processes one Telegram update end to end under the user's
// session lock.
func (en *Engine) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		log.Printf("Ignoring update without message: %v", update.UpdateID)
		return
	}
	if update.Message.From == nil {
		log.Printf("Warning: Received message with nil From field")
		return
	}

	from := update.Message.From
	chatID := update.Message.Chat.ID
	userID := from.ID
	userName := from.FirstName
	if from.LastName != "" {
		userName += " " + from.LastName
	}

	sess := en.Store.GetOrCreate(userID, userName)
	if sess == nil {
		log.Printf("Error: Failed to get or create session for user %d", userID)
		if chatID != 0 {
			en.Out.Enqueue(dispatch.Outbound{UserID: chatID, Parts: []string{msgInternalError}})
		}
		return
	}

	sess.Mu.Lock()
	defer sess.Mu.Unlock()

	if update.Message.IsCommand() {
		en.handleCommand(ctx, sess, chatID, update.Message.Command(), update.Message.CommandArguments())
		return
	}
	en.handleText(ctx, sess, chatID, update.Message.Text)
}

func (en *Engine) handleCommand(ctx context.Context, sess *state.SessionState, chatID int64, command, args string) {
	log.Printf("[handleCommand] User %d sent /%s in state %s", sess.UserID, command, sess.LessonFSM.Current())

	switch command {
	case CommandStart:
		en.startLesson(ctx, sess, chatID)
	case CommandStop:
		en.stopLesson(ctx, sess, chatID)
	case CommandHelp:
		en.send(chatID, msgHelp)
	case CommandStats:
		en.sendStats(ctx, sess, chatID)
	case CommandSync:
		en.send(chatID, msgSyncStarted)
		go en.syncAndReport(chatID)
	case CommandAuto:
		en.toggleAutoPractice(ctx, sess, chatID)
	case CommandInterval:
		en.setAutoInterval(ctx, sess, chatID, args)
	default:
		en.send(chatID, msgUnknownCommand)
	}
}

func (en *Engine) handleText(ctx context.Context, sess *state.SessionState, chatID int64, text string) {
	switch sess.LessonFSM.Current() {
	case StateAwaitingAnswer:
		en.gradeAnswer(ctx, sess, chatID, text)
	case StateIdle:
		en.send(chatID, msgIdleHint)
	case StateEnded:
		if err := sess.LessonFSM.Event(ctx, EventRestart, en, sess, chatID); err != nil && !isNoTransitionError(err) {
			en.recoverSession(sess, chatID, "restart from ended", err)
			return
		}
		en.send(chatID, msgEndedHint)
	default:
		// Grading and advancing are transient states the handler never
		// leaves a session in; seeing one here means the session broke.
		en.recoverSession(sess, chatID, "text received in transient state "+sess.LessonFSM.Current(), nil)
	}
}

func (en *Engine) startLesson(ctx context.Context, sess *state.SessionState, chatID int64) {
	if sess.LessonFSM.Current() != StateIdle {
		log.Printf("User %d used /start, resetting lesson from %s to idle", sess.UserID, sess.LessonFSM.Current())
		if err := sess.LessonFSM.Event(ctx, EventForceIdle, en, sess, chatID); err != nil && !isNoTransitionError(err) {
			log.Printf("Error triggering EventForceIdle via /start for user %d: %v. Attempting SetState.", sess.UserID, err)
			sess.LessonFSM.SetState(StateIdle)
			sess.ResetLesson()
		}
	}

	phrases, err := en.Deck.DrawLesson(ctx, en.Cfg.LessonSize)
	if err != nil {
		log.Printf("[startLesson] Draw failed for user %d: %v", sess.UserID, err)
		en.send(chatID, msgInternalError)
		return
	}
	if len(phrases) == 0 {
		en.send(chatID, msgDeckEmpty)
		return
	}

	sess.ResetLesson()
	sess.Lesson = en.buildLesson(phrases)
	sess.RetriesLeft = en.Cfg.RetryBudget

	if err := sess.LessonFSM.Event(ctx, EventStartLesson, en, sess, chatID); err != nil && !isNoTransitionError(err) {
		en.recoverSession(sess, chatID, "start lesson", err)
	}
}

// buildLesson turns deck phrases into pending cards, alternating exercise
// direction per position when the config asks for both.
func (en *Engine) buildLesson(phrases []deck.Phrase) []state.PendingCard {
	cards := make([]state.PendingCard, 0, len(phrases))
	for i, p := range phrases {
		direction := state.DirectionToRussian
		if en.Cfg.Directions == config.DirectionsBoth && i%2 == 1 {
			direction = state.DirectionToEnglish
		}
		card := state.PendingCard{
			PhraseID:  p.ID,
			SheetRow:  p.SheetRow,
			English:   p.English,
			Russian:   p.Russian,
			Example:   p.Example,
			Direction: direction,
		}
		card.Alternatives = splitVariants(card.Expected())
		cards = append(cards, card)
	}
	return cards
}

func (en *Engine) stopLesson(ctx context.Context, sess *state.SessionState, chatID int64) {
	if sess.LessonFSM.Current() == StateIdle {
		en.send(chatID, msgNothingToStop)
		return
	}
	if err := en.Cache.FlushUser(ctx, sess.UserID); err != nil {
		log.Printf("[stopLesson] Flush failed for user %d: %v", sess.UserID, err)
	}
	if err := sess.LessonFSM.Event(ctx, EventForceIdle, en, sess, chatID); err != nil && !isNoTransitionError(err) {
		en.recoverSession(sess, chatID, "stop lesson", err)
		return
	}
	en.send(chatID, msgLessonStopped)
}

// gradeAnswer runs the full grade-record-advance pipeline for one answer.
// Profile mutation and MarkDirty happen exactly once per completed card,
// never on an intermediate retry.
func (en *Engine) gradeAnswer(ctx context.Context, sess *state.SessionState, chatID int64, answer string) {
	if err := sess.LessonFSM.Event(ctx, EventAnswerReceived, en, sess, chatID); err != nil && !isNoTransitionError(err) {
		en.recoverSession(sess, chatID, "answer received", err)
		return
	}

	card := sess.CurrentCard()
	if card == nil {
		en.recoverSession(sess, chatID, "no pending card while grading", nil)
		return
	}

	en.Out.Typing(chatID)
	score := en.Grader.Grade(card, answer)
	correct := score >= passingScore
	log.Printf("[gradeAnswer] User %d answered card %d/%d, score %.1f", sess.UserID, sess.Position+1, len(sess.Lesson), score)

	go en.appendRemoteLog(sess.UserID, card.Prompt(), answer, score)

	if !correct && sess.RetriesLeft > 0 {
		sess.RetriesLeft--
		en.send(chatID, msgRetry(sess.RetriesLeft+1))
		if err := sess.LessonFSM.Event(ctx, EventGradedRetry, en, sess, chatID); err != nil && !isNoTransitionError(err) {
			en.recoverSession(sess, chatID, "graded retry", err)
		}
		return
	}

	// Final outcome for this card: either correct or the budget ran out.
	event := EventGradedCorrect
	if correct {
		sess.LessonCorrect++
		en.send(chatID, msgCorrect(score, card.Example))
	} else {
		event = EventGradedReveal
		en.send(chatID, msgReveal(card.Expected(), card.Example))
	}
	sess.LessonScore += score

	en.recordOutcome(ctx, sess, chatID, card, answer, score, correct)

	if err := sess.LessonFSM.Event(ctx, event, en, sess, chatID); err != nil && !isNoTransitionError(err) {
		en.recoverSession(sess, chatID, "graded outcome", err)
		return
	}
	en.advance(ctx, sess, chatID)
}

// recordOutcome persists the completed card: local answer history, the
// learning profile (one MarkDirty), and the sheet progress write-back.
func (en *Engine) recordOutcome(ctx context.Context, sess *state.SessionState, chatID int64, card *state.PendingCard, answer string, score float64, correct bool) {
	newProgress, becameLearned, err := en.Deck.RecordAnswer(ctx, sess.UserID, card.PhraseID, answer, score, string(card.Direction))
	if err != nil {
		log.Printf("[recordOutcome] RecordAnswer failed for user %d phrase %d: %v", sess.UserID, card.PhraseID, err)
	}

	profile, perr := en.Cache.Get(ctx, sess.UserID, sess.UserName)
	if perr != nil {
		log.Printf("[recordOutcome] Profile unavailable for user %d: %v", sess.UserID, perr)
		return
	}
	profile.PhrasesSeen++
	profile.TotalScore += score
	if correct {
		profile.CorrectAnswers++
	}
	if becameLearned {
		profile.LearnedPhrases++
		en.send(chatID, msgPhraseLearned(card.English))
	}
	profile.LastSeen = time.Now().UTC()
	en.Cache.MarkDirty(sess.UserID, profile)

	if err == nil && card.SheetRow > 0 {
		go en.writeBackProgress(card.SheetRow, newProgress)
	}
}

func (en *Engine) advance(ctx context.Context, sess *state.SessionState, chatID int64) {
	sess.Position++
	sess.RetriesLeft = en.Cfg.RetryBudget

	if sess.Position < len(sess.Lesson) {
		if err := sess.LessonFSM.Event(ctx, EventNextCard, en, sess, chatID); err != nil && !isNoTransitionError(err) {
			en.recoverSession(sess, chatID, "next card", err)
		}
		return
	}

	profile, err := en.Cache.Get(ctx, sess.UserID, sess.UserName)
	if err == nil {
		profile.LessonIndex++
		en.Cache.MarkDirty(sess.UserID, profile)
	}
	if err := sess.LessonFSM.Event(ctx, EventLessonDone, en, sess, chatID); err != nil && !isNoTransitionError(err) {
		en.recoverSession(sess, chatID, "lesson done", err)
		return
	}
	if err := en.Cache.FlushUser(ctx, sess.UserID); err != nil {
		log.Printf("[advance] End-of-lesson flush failed for user %d: %v", sess.UserID, err)
	}
}

// recoverSession is the state corruption path: log, drop the lesson, reset
// to idle and tell the user. Callers return immediately after.
func (en *Engine) recoverSession(sess *state.SessionState, chatID int64, reason string, err error) {
	log.Printf("[recoverSession] User %d session reset (%s): %v", sess.UserID, reason, err)
	sess.LessonFSM.SetState(StateIdle)
	sess.ResetLesson()
	en.send(chatID, msgInternalError)
}

func (en *Engine) sendCardPrompt(sess *state.SessionState, chatID int64) {
	card := sess.CurrentCard()
	if card == nil {
		log.Printf("[sendCardPrompt] No card at position %d for user %d", sess.Position, sess.UserID)
		return
	}
	instruction := instructionToRussian
	if card.Direction == state.DirectionToEnglish {
		instruction = instructionToEnglish
	}
	en.send(chatID, msgCardPrompt(sess.Position+1, len(sess.Lesson), instruction, card.Prompt()))
}

func (en *Engine) sendLessonSummary(sess *state.SessionState, chatID int64) {
	en.send(chatID, msgLessonSummary(len(sess.Lesson), sess.LessonCorrect, sess.LessonScore))
}

func (en *Engine) sendStats(ctx context.Context, sess *state.SessionState, chatID int64) {
	profile, err := en.Cache.Get(ctx, sess.UserID, sess.UserName)
	if err != nil {
		log.Printf("[sendStats] Profile unavailable for user %d: %v", sess.UserID, err)
		en.send(chatID, msgInternalError)
		return
	}
	deckTotal, deckLearned, err := en.Deck.Counts(ctx)
	if err != nil {
		log.Printf("[sendStats] Deck counts failed: %v", err)
	}
	en.send(chatID, msgStats(profile.PhrasesSeen, profile.CorrectAnswers, profile.LearnedPhrases, profile.TotalScore, deckTotal, deckLearned))
}

// SyncDeck pulls the full card list from the spreadsheet into the mirror.
// Used by the /sync command and the periodic sync timer.
func (en *Engine) SyncDeck(ctx context.Context) (deck.SyncResult, error) {
	rows, err := en.Remote.FetchDeck(ctx)
	if err != nil {
		return deck.SyncResult{}, err
	}
	return en.Deck.SyncCards(ctx, rows)
}

func (en *Engine) syncAndReport(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := en.SyncDeck(ctx)
	if err != nil {
		log.Printf("[syncAndReport] Sync failed: %v", err)
		en.send(chatID, msgSyncFailed())
		return
	}
	en.send(chatID, msgSyncResult(result.Added, result.Updated, result.Errors, result.Total))
}

// defaultAutoInterval applies when a user enables auto practice without
// ever setting an interval of their own.
const defaultAutoInterval = 4 * time.Hour

// toggleAutoPractice flips the user's auto-practice opt-in.
func (en *Engine) toggleAutoPractice(ctx context.Context, sess *state.SessionState, chatID int64) {
	profile, err := en.Cache.Get(ctx, sess.UserID, sess.UserName)
	if err != nil {
		log.Printf("[toggleAutoPractice] Profile unavailable for user %d: %v", sess.UserID, err)
		en.send(chatID, msgInternalError)
		return
	}

	profile.AutoPractice = !profile.AutoPractice
	if profile.AutoPractice && profile.AutoInterval <= 0 {
		profile.AutoInterval = defaultAutoInterval
	}
	en.Cache.MarkDirty(sess.UserID, profile)

	if profile.AutoPractice {
		en.send(chatID, msgAutoEnabled(profile.AutoInterval))
	} else {
		en.send(chatID, msgAutoDisabled)
	}
}

// setAutoInterval sets the user's auto-practice period from "/interval N"
// (minutes).
func (en *Engine) setAutoInterval(ctx context.Context, sess *state.SessionState, chatID int64, args string) {
	minutes, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || minutes < 1 {
		en.send(chatID, msgIntervalUsage)
		return
	}

	profile, perr := en.Cache.Get(ctx, sess.UserID, sess.UserName)
	if perr != nil {
		log.Printf("[setAutoInterval] Profile unavailable for user %d: %v", sess.UserID, perr)
		en.send(chatID, msgInternalError)
		return
	}

	profile.AutoInterval = time.Duration(minutes) * time.Minute
	en.Cache.MarkDirty(sess.UserID, profile)
	en.send(chatID, msgIntervalSet(profile.AutoInterval, profile.AutoPractice))
}

// AutoPractice nudges idle users who opted in and whose interval has
// elapsed since their last nudge. Each nudge stamps LastAuto so the next
// timer tick skips the user until they are due again.
func (en *Engine) AutoPractice(ctx context.Context) {
	phrases, err := en.Deck.DrawLesson(ctx, 1)
	if err != nil || len(phrases) == 0 {
		log.Printf("[AutoPractice] No phrase to send: %v", err)
		return
	}
	p := phrases[0]
	now := time.Now().UTC()

	sent := 0
	for _, sess := range en.Store.Sessions() {
		// The session lock serializes the profile read-modify-write with
		// the update handlers.
		sess.Mu.Lock()
		if sess.LessonFSM.Current() != StateIdle {
			sess.Mu.Unlock()
			continue
		}

		profile, perr := en.Cache.Get(ctx, sess.UserID, sess.UserName)
		due := perr == nil && profile.AutoPractice
		if due {
			interval := profile.AutoInterval
			if interval <= 0 {
				interval = defaultAutoInterval
			}
			due = profile.LastAuto.IsZero() || now.Sub(profile.LastAuto) >= interval
		}
		if due {
			profile.LastAuto = now
			en.Cache.MarkDirty(sess.UserID, profile)
		}
		userID := sess.UserID
		sess.Mu.Unlock()

		if due {
			en.send(userID, msgAutoPractice(p.English, p.Russian))
			sent++
		}
	}
	log.Printf("[AutoPractice] Sent phrase %d to %d user(s) due for practice", p.ID, sent)
}

// FinalizeSession flushes a session's profile before the store drops it.
// Runs under the session lock held by Store.ExpireIdle.
func (en *Engine) FinalizeSession(sess *state.SessionState) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := en.Cache.FlushUser(ctx, sess.UserID); err != nil {
		log.Printf("[FinalizeSession] Flush failed for user %d: %v", sess.UserID, err)
	}
}

func (en *Engine) appendRemoteLog(userID int64, phrase, answer string, score float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entry := sheets.LogEntry{
		ID:     uuid.NewString(),
		UserID: userID,
		Phrase: phrase,
		Answer: answer,
		Score:  score,
		At:     time.Now().UTC(),
	}
	if err := en.Remote.AppendLog(ctx, entry); err != nil {
		log.Printf("[appendRemoteLog] Failed for user %d: %v", userID, err)
	}
}

func (en *Engine) writeBackProgress(sheetRow int, progress float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := en.Remote.UpdateCardProgress(ctx, sheetRow, progress); err != nil {
		log.Printf("[writeBackProgress] Row %d failed: %v", sheetRow, err)
	}
}

func (en *Engine) send(chatID int64, text string) {
	en.Out.Enqueue(dispatch.Outbound{UserID: chatID, Parts: []string{text}})
}
