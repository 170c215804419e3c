package adapters

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/alphaflow/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM LISTENER - Chat-channel mention adapter
// ═══════════════════════════════════════════════════════════════════════════════
//
// Watches configured channels for posts containing a token address and emits
// one RawSignal per mention with source_id = channel name. Raw messages are
// persisted for the audit trail before any filtering.
//
// ═══════════════════════════════════════════════════════════════════════════════

// RawMessageStore persists raw chat events before filtering
type RawMessageStore interface {
	SaveTelegramSignal(token string, chain types.Chain, channelName, channelUsername, text string, ts time.Time) error
}

// TelegramListener streams token mentions from Telegram channels
type TelegramListener struct {
	api      *tgbotapi.BotAPI
	channels map[string]bool
	store    RawMessageStore
	q        *queue

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewTelegramListener creates the channel listener. channels are channel
// usernames (without @).
func NewTelegramListener(token string, channels []string, queueSize int, store RawMessageStore) (*TelegramListener, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(channels))
	for _, c := range channels {
		set[c] = true
	}

	return &TelegramListener{
		api:      api,
		channels: set,
		store:    store,
		q:        newQueue(queueSize, "telegram"),
	}, nil
}

func (t *TelegramListener) Name() string { return "telegram" }

// Start begins consuming channel posts
func (t *TelegramListener) Start(ctx context.Context) (<-chan types.RawSignal, error) {
	ctx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"channel_post"}
	updates := t.api.GetUpdatesChan(u)

	go func() {
		defer close(t.q.ch)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(update)
			}
		}
	}()

	log.Info().Int("channels", len(t.channels)).Msg("📡 Telegram listener started")
	return t.q.out(), nil
}

// Stop halts emission
func (t *TelegramListener) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *TelegramListener) handleUpdate(update tgbotapi.Update) {
	post := update.ChannelPost
	if post == nil || post.Chat == nil {
		return
	}

	username := post.Chat.UserName
	if len(t.channels) > 0 && !t.channels[username] {
		return
	}

	addr, chain, ok := extractTokenAddress(post.Text)
	if !ok {
		return
	}

	name := post.Chat.Title
	if name == "" {
		name = username
	}
	ts := post.Time()

	if t.store != nil {
		if err := t.store.SaveTelegramSignal(addr, chain, name, username, post.Text, ts); err != nil {
			log.Warn().Err(err).Str("channel", name).Msg("Failed to persist telegram signal")
		}
	}

	t.q.push(types.RawSignal{
		SourceID:        name,
		Chain:           chain,
		Token:           addr,
		Timestamp:       ts,
		ChannelUsername: username,
		MessageText:     post.Text,
		TokenTier:       types.TierUnknown,
	})

	log.Debug().
		Str("channel", name).
		Str("token", addr).
		Str("chain", string(chain)).
		Msg("💬 Channel mention")
}
