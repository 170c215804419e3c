package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/alphaflow/internal/config"
	"github.com/web3guy0/alphaflow/internal/risk"
	"github.com/web3guy0/alphaflow/internal/storage"
	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// OPERATOR BOT - Status queries and pause/resume control over Telegram
// ═══════════════════════════════════════════════════════════════════════════════

// Bot answers operator commands and pushes trade notifications
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	db     *storage.Database
	risk   *risk.Manager
	stopCh chan struct{}
}

// New creates the operator bot
func New(cfg *config.Config, db *storage.Database, riskMgr *risk.Manager) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Operator bot authorized")
	return &Bot{
		api:    api,
		cfg:    cfg,
		db:     db,
		risk:   riskMgr,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the command listener
func (b *Bot) Start() {
	go b.listenForUpdates()

	if b.cfg.TelegramChatID != 0 {
		mode := "SHADOW"
		if !b.cfg.ShadowMode {
			mode = "LIVE"
		}
		b.sendText(b.cfg.TelegramChatID, fmt.Sprintf("🚀 AlphaFlow started in %s mode", mode))
	}
}

// Stop halts the listener
func (b *Bot) Stop() {
	close(b.stopCh)
}

func (b *Bot) listenForUpdates() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Only respond to the authorized operator
	if b.cfg.TelegramChatID != 0 && chatID != b.cfg.TelegramChatID {
		b.sendText(chatID, "⛔ Unauthorized")
		return
	}

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start", "help", "h":
		b.cmdHelp(chatID)
	case "stats":
		b.cmdStats(chatID)
	case "positions", "pos":
		b.cmdPositions(chatID)
	case "pause":
		b.cmdPause(chatID, msg.CommandArguments())
	case "resume":
		b.cmdResume(chatID)
	default:
		b.sendText(chatID, "❓ Unknown command. Use /help")
	}
}

// ==================== COMMANDS ====================

func (b *Bot) cmdHelp(chatID int64) {
	b.sendText(chatID, strings.Join([]string{
		"📖 *Commands*",
		"/stats - closed trade statistics",
		"/positions - open positions",
		"/pause [hours] - pause trading (default 24h)",
		"/resume - resume trading, reset loss streak",
	}, "\n"))
}

func (b *Bot) cmdStats(chatID int64) {
	stats, err := b.db.Stats()
	if err != nil {
		b.sendText(chatID, "❌ Failed to load stats")
		return
	}
	if stats.Total == 0 {
		b.sendText(chatID, "📊 No closed trades yet")
		return
	}

	winRate := float64(stats.Wins) / float64(stats.Total) * 100
	var sb strings.Builder
	sb.WriteString("📊 *Trade Stats*\n")
	fmt.Fprintf(&sb, "Trades: %d (%dW / %dL)\n", stats.Total, stats.Wins, stats.Losses)
	fmt.Fprintf(&sb, "Win rate: %.0f%%\n", winRate)
	fmt.Fprintf(&sb, "Avg PnL: %+.1f%%\n", stats.AvgPnLPct)
	fmt.Fprintf(&sb, "Best: %+.1f%% / Worst: %+.1f%%\n", stats.BestPct, stats.WorstPct)
	fmt.Fprintf(&sb, "Loss streak: %d\n", b.risk.ConsecutiveLosses())
	if until := b.risk.PausedUntil(); until.After(time.Now()) {
		fmt.Fprintf(&sb, "⏸️ Paused until %s\n", until.Format("15:04 MST"))
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) cmdPositions(chatID int64) {
	positions, err := b.db.ActivePositions()
	if err != nil {
		b.sendText(chatID, "❌ Failed to load positions")
		return
	}
	if len(positions) == 0 {
		b.sendText(chatID, "📦 No open positions")
		return
	}

	var sb strings.Builder
	sb.WriteString("📦 *Open Positions*\n")
	for _, p := range positions {
		age := time.Since(p.EntryTime).Round(time.Minute)
		fmt.Fprintf(&sb, "• %s [%s] %s held %s, %.0f%% remaining\n",
			displayName(p), p.Chain, string(p.Status), age, p.RemainingPercent)
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) cmdPause(chatID int64, args string) {
	hours := b.cfg.PauseHours
	if args != "" {
		if _, err := fmt.Sscanf(strings.TrimSpace(args), "%d", &hours); err != nil || hours < 1 {
			b.sendText(chatID, "❌ Usage: /pause [hours]")
			return
		}
	}
	b.risk.Pause(time.Duration(hours) * time.Hour)
	b.sendText(chatID, fmt.Sprintf("⏸️ Trading paused for %dh", hours))
}

func (b *Bot) cmdResume(chatID int64) {
	b.risk.Resume()
	b.sendText(chatID, "▶️ Trading resumed, loss streak reset")
}

// ==================== NOTIFICATIONS ====================

// NotifyEntry announces a new position
func (b *Bot) NotifyEntry(pos *types.Position) {
	if b.cfg.TelegramChatID == 0 {
		return
	}
	tag := ""
	if pos.IsShadow {
		tag = " (shadow)"
	}
	b.sendText(b.cfg.TelegramChatID, fmt.Sprintf(
		"🟢 BUY%s %s [%s]\nScore %d, size %s ($%s)",
		tag, displayName(pos), pos.Chain, pos.AlphaScore,
		pos.EntrySizeNative.StringFixed(4), pos.EntrySizeUSD.StringFixed(2)))
}

// NotifyExit announces a (partial) exit
func (b *Bot) NotifyExit(pos *types.Position, exitType string, soldPercent, pnlPct float64) {
	if b.cfg.TelegramChatID == 0 {
		return
	}
	b.sendText(b.cfg.TelegramChatID, fmt.Sprintf(
		"🔴 SELL %.0f%% %s [%s]\n%s, PnL %+.1f%%, %.0f%% remaining",
		soldPercent, displayName(pos), pos.Chain, exitType, pnlPct, pos.RemainingPercent))
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Failed to send telegram message")
	}
}

func displayName(p *types.Position) string {
	if p.Symbol != "" {
		return p.Symbol
	}
	if len(p.Token) > 12 {
		return p.Token[:12] + "…"
	}
	return p.Token
}
