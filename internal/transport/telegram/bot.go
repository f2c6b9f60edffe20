// Package telegram is the admin boundary: a small bot for triggering and
// inspecting registered schedules. It holds no scheduling logic of its own;
// every command delegates to the trigger service or the engine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"jobmill/internal/trigger"
	"jobmill/pkg/logx"
)

type Config struct {
	Token          string
	Admins         []int64
	PollTimeout    time.Duration
	SendRatePerSec int
}

// Triggerer is the run-now capability exposed to operators.
type Triggerer interface {
	TriggerNow(key string) trigger.Status
}

// ScheduleLister exposes the registered keys for /jobs.
type ScheduleLister interface {
	Keys() []string
}

type Bot struct {
	cfg  Config
	log  logx.Logger
	bot  *tele.Bot
	trig Triggerer
	sch  ScheduleLister

	// Outgoing sends are throttled; Telegram rejects bursty bots.
	limiter *rate.Limiter

	admins map[int64]struct{}
}

func New(cfg Config, trig Triggerer, sch ScheduleLister, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 1
	}
	admins := make(map[int64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	bot := &Bot{
		cfg:     cfg,
		log:     log,
		bot:     b,
		trig:    trig,
		sch:     sch,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		admins:  admins,
	}
	bot.registerHandlers()
	return bot, nil
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/ping", b.guard(func(c tele.Context) error {
		return b.reply(c, "pong")
	}))

	b.bot.Handle("/jobs", b.guard(func(c tele.Context) error {
		keys := b.sch.Keys()
		if len(keys) == 0 {
			return b.reply(c, "no schedules registered")
		}
		sort.Strings(keys)
		return b.reply(c, strings.Join(keys, "\n"))
	}))

	b.bot.Handle("/runnow", b.guard(func(c tele.Context) error {
		key := strings.TrimSpace(c.Message().Payload)
		if key == "" {
			return b.reply(c, "usage: /runnow <tenant>:<job>-v<version>")
		}
		st := b.trig.TriggerNow(key)
		b.log.Info("admin run-now",
			logx.Int64("from", c.Sender().ID),
			logx.String("key", key),
			logx.String("status", st.String()))
		switch st {
		case trigger.Accepted:
			return b.reply(c, fmt.Sprintf("accepted: %s", key))
		case trigger.NotFound:
			return b.reply(c, fmt.Sprintf("not found: %s", key))
		default:
			return b.reply(c, fmt.Sprintf("malformed key: %s", key))
		}
	}))
}

// guard rejects senders outside the admin allow-list. An empty list means
// the bot answers nobody.
func (b *Bot) guard(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		s := c.Sender()
		if s == nil {
			return nil
		}
		if _, ok := b.admins[s.ID]; !ok {
			b.log.Debug("ignoring non-admin command", logx.Int64("from", s.ID))
			return nil
		}
		return next(c)
	}
}

func (b *Bot) reply(c tele.Context, text string) error {
	if err := b.limiter.Wait(context.Background()); err != nil {
		return err
	}
	return c.Send(text)
}

// Start begins long polling. It returns immediately; polling stops when ctx
// is done.
func (b *Bot) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	go b.bot.Start()
	b.log.Info("telegram admin bot started", logx.Int("admins", len(b.admins)))
}
