package fsm

import (
	"fmt"
	"time"
)

const (
	msgInternalError  = "Произошла внутренняя ошибка. Пожалуйста, попробуйте позже."
	msgUnknownCommand = "Неизвестная команда. Используйте /help для списка команд."
	msgIdleHint       = "Урок не начат. Отправьте /start, чтобы начать."
	msgEndedHint      = "Урок завершён. Отправьте /start, чтобы начать новый."
	msgDeckEmpty      = "В колоде пока нет фраз. Попробуйте /sync, чтобы загрузить их из таблицы."
	msgLessonStopped  = "Урок остановлен. Прогресс сохранён."
	msgNothingToStop  = "Сейчас нет активного урока."
	msgSyncStarted    = "Синхронизирую колоду с таблицей..."

	msgAutoDisabled   = "🔕 Автопрактика выключена."
	msgIntervalUsage  = "Укажите период в минутах, например: /interval 240"

	msgHelp = `Я бот для изучения английских фраз.

/start — начать урок
/stop — остановить текущий урок
/stats — ваша статистика
/sync — синхронизировать колоду с таблицей
/auto — включить или выключить автопрактику
/interval N — период автопрактики в минутах
/help — эта справка

Во время урока просто отправляйте перевод фразы сообщением.`
)

func msgCardPrompt(position, total int, instruction, prompt string) string {
	return fmt.Sprintf("*Фраза %d/%d*\n%s\n\n%s", position, total, instruction, prompt)
}

func msgCorrect(score float64, example string) string {
	text := fmt.Sprintf("%s Верно!", scoreEmoji(score))
	if example != "" {
		text += fmt.Sprintf("\n_%s_", example)
	}
	return text
}

func msgRetry(retriesLeft int) string {
	return fmt.Sprintf("❌ Не совсем. Попробуйте ещё раз (осталось попыток: %d).", retriesLeft)
}

func msgReveal(expected, example string) string {
	text := fmt.Sprintf("Правильный ответ: *%s*", expected)
	if example != "" {
		text += fmt.Sprintf("\n_%s_", example)
	}
	return text
}

func msgLessonSummary(total, correct int, score float64) string {
	return fmt.Sprintf("🏁 Урок окончен!\nФраз: %d, верно с первого раза: %d, очки: %.1f.\n\n/start — новый урок, /stats — статистика.",
		total, correct, score)
}

func msgPhraseLearned(english string) string {
	return fmt.Sprintf("⭐ Фраза выучена: *%s*", english)
}

func msgStats(seen, correct, learned int, totalScore float64, deckTotal, deckLearned int64) string {
	return fmt.Sprintf(`📊 *Статистика*
Фраз отвечено: %d
Верных ответов: %d
Выучено фраз: %d
Очки: %.1f

Колода: %d фраз, из них выучено %d.`,
		seen, correct, learned, totalScore, deckTotal, deckLearned)
}

func msgSyncResult(added, updated, errors, total int) string {
	return fmt.Sprintf("✅ Синхронизация завершена: %d новых, %d обновлено, %d ошибок. Всего фраз: %d.",
		added, updated, errors, total)
}

func msgSyncFailed() string {
	return "⚠️ Не удалось синхронизироваться с таблицей. Попробуйте позже."
}

func msgAutoEnabled(interval time.Duration) string {
	return fmt.Sprintf("🔔 Автопрактика включена, период: %s. Изменить: /interval N (минуты).", formatInterval(interval))
}

func msgIntervalSet(interval time.Duration, enabled bool) string {
	text := fmt.Sprintf("Период автопрактики: %s.", formatInterval(interval))
	if !enabled {
		text += " Автопрактика сейчас выключена, включить: /auto"
	}
	return text
}

func formatInterval(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%d ч", int(d/time.Hour))
	}
	return fmt.Sprintf("%d мин", int(d/time.Minute))
}

func msgAutoPractice(english, russian string) string {
	return fmt.Sprintf("🔔 Время практики!\n*%s* — %s\n\n/start — начать урок.", english, russian)
}

const (
	instructionToRussian = "Переведите на русский:"
	instructionToEnglish = "Переведите на английский:"
)
