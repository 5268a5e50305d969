package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"englishtutorbot/pkg/bot"
	"englishtutorbot/pkg/bot/telegramadapter"
	"englishtutorbot/pkg/cache"
	"englishtutorbot/pkg/config"
	"englishtutorbot/pkg/deck"
	"englishtutorbot/pkg/dispatch"
	"englishtutorbot/pkg/fsm"
	"englishtutorbot/pkg/sheets"
	"englishtutorbot/pkg/sheets/googleclient"
	"englishtutorbot/pkg/state"

	"github.com/joho/godotenv"
)

func main() {

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, relying on process environment")
	}

	cfgPath := "lesson_config.yaml"
	if err := config.LoadConfig(cfgPath); err != nil {
		log.Panicf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	lessonConfig := config.GetConfig()

	settings, err := config.LoadSettings()
	if err != nil {
		log.Panicf("Failed to load settings: %v", err)
	}
	if settings.AnswerRetryBudget > 0 {
		log.Printf("Retry budget overridden by ANSWER_RETRY_BUDGET: %d", settings.AnswerRetryBudget)
		lessonConfig.RetryBudget = settings.AnswerRetryBudget
	}

	botClient, err := bot.NewClient(settings.BotToken)
	if err != nil {
		log.Panicf("Failed to initialize bot client: %v", err)
	}
	log.Printf("Authorized on account %s", botClient.Self.UserName)

	botPort, err := telegramadapter.New(botClient, log.Default())
	if err != nil {
		log.Panicf("Failed to create telegram adapter: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := sheets.LoadCredentials(settings.CredentialsFile); err != nil {
		log.Panicf("Failed to validate sheets credentials: %v", err)
	}
	sheetsAPI, err := googleclient.New(ctx, settings.CredentialsFile, settings.SpreadsheetID)
	if err != nil {
		log.Panicf("Failed to create sheets client: %v", err)
	}
	gateway := sheets.NewGateway(sheetsAPI, settings.SheetsMinInterval, sheets.DefaultBackoff)

	deckStore, err := deck.Open(settings.DeckDBPath, lessonConfig.LearnedThreshold)
	if err != nil {
		log.Panicf("Failed to open deck database: %v", err)
	}

	profileCache := cache.New(gateway, settings.IdleSessionTimeout)
	dispatcher := dispatch.NewDispatcher(botPort)

	fsmCreator := fsm.NewFSMCreator()
	stateStore := state.NewStore(fsmCreator)

	engine := fsm.NewEngine(stateStore, profileCache, deckStore, gateway, dispatcher, lessonConfig)

	// First deck sync at startup so /start works on a fresh database.
	go func() {
		syncCtx, syncCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer syncCancel()
		if _, err := engine.SyncDeck(syncCtx); err != nil {
			log.Printf("Initial deck sync failed: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("Shutdown signal received...")
		cancel()
	}()

	go runTimers(ctx, engine, profileCache, stateStore, settings)

	updates := botClient.GetUpdatesChan(60)
	log.Println("Starting update processing...")

	for {
		select {
		case update := <-updates:
			if update.UpdateID == 0 {
				continue
			}
			go engine.HandleUpdate(ctx, update)
		case <-ctx.Done():
			log.Println("Stopping update processing loop...")
			shutdown(profileCache, dispatcher)
			return
		}
	}
}

// runTimers owns the periodic work: flushing dirty profiles, expiring idle
// sessions, re-syncing the deck and the auto practice nudge.
func runTimers(ctx context.Context, engine *fsm.Engine, profileCache *cache.Cache, stateStore *state.Store, settings *config.Settings) {
	flushTicker := time.NewTicker(settings.FlushInterval)
	expireTicker := time.NewTicker(settings.IdleSessionTimeout / 2)
	syncTicker := time.NewTicker(settings.DeckSyncInterval)
	practiceTicker := time.NewTicker(settings.AutoPracticeInterval)
	defer flushTicker.Stop()
	defer expireTicker.Stop()
	defer syncTicker.Stop()
	defer practiceTicker.Stop()

	for {
		select {
		case <-flushTicker.C:
			flushed, failed := profileCache.Flush(ctx)
			if flushed > 0 || failed > 0 {
				log.Printf("Profile flush: %d written, %d failed", flushed, failed)
			}
		case <-expireTicker.C:
			now := time.Now()
			if n := stateStore.ExpireIdle(now, settings.IdleSessionTimeout, engine.FinalizeSession); n > 0 {
				log.Printf("Expired %d idle session(s)", n)
			}
			profileCache.ExpireIdle(now)
		case <-syncTicker.C:
			syncCtx, syncCancel := context.WithTimeout(ctx, 2*time.Minute)
			if _, err := engine.SyncDeck(syncCtx); err != nil {
				log.Printf("Periodic deck sync failed: %v", err)
			}
			syncCancel()
		case <-practiceTicker.C:
			engine.AutoPractice(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// shutdown drains the outbox and writes pending profile changes before exit.
func shutdown(profileCache *cache.Cache, dispatcher *dispatch.Dispatcher) {
	dispatcher.Shutdown(10 * time.Second)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	flushed, failed := profileCache.Flush(flushCtx)
	log.Printf("Final profile flush: %d written, %d failed", flushed, failed)
}
