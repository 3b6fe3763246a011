package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang-jwt/jwt/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"github.com/pershin-daniil/PrayerPipeline/internal/calendar"
	"github.com/pershin-daniil/PrayerPipeline/internal/config"
	"github.com/pershin-daniil/PrayerPipeline/internal/rest"
	"github.com/pershin-daniil/PrayerPipeline/internal/telegram"
	"github.com/pershin-daniil/PrayerPipeline/pkg/logger"
	"github.com/pershin-daniil/PrayerPipeline/pkg/notifier"
	"github.com/pershin-daniil/PrayerPipeline/pkg/pgstore"
	"github.com/pershin-daniil/PrayerPipeline/pkg/service"
	"github.com/pershin-daniil/PrayerPipeline/pkg/worker"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := pgstore.NewStore(ctx, log, cfg.PgDSN)
	if err != nil {
		log.Panic(err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("err closing store: %v", err)
		}
	}()
	if err = store.Migrate(migrate.Up); err != nil {
		log.Panic(err)
	}

	key, err := signingKey(log, cfg.JWTKeyPath)
	if err != nil {
		log.Panic(err)
	}

	dispatcher := notifier.New(log, store, notifier.NewLogSender(log))
	opts := []service.Option{
		service.WithSigningKey(key, cfg.TokenTTL),
		service.WithMaxRecurrenceSpan(cfg.MaxRecurrenceSpan),
	}

	var tg *telegram.Telegram
	bot, err := newBot(cfg.TelegramToken)
	if err != nil {
		log.Panic(err)
	}
	if bot != nil {
		dispatcher.AddSender(telegram.NewNotifier(log, bot))
		opts = append(opts, service.WithTelegramBot(bot.Me.Username))
	} else {
		log.Info("TG_TOKEN is not set, telegram bot disabled")
	}

	if cfg.CalendarID != "" {
		cal, err := calendar.New(ctx, log, cfg.CalendarCredentials, cfg.CalendarID)
		if err != nil {
			log.Panic(err)
		}
		dispatcher.AddObserver(cal)
	}

	app := service.NewScheduleService(log, store, dispatcher, opts...)
	server := rest.NewServer(log, app, cfg.Address, version, &key.PublicKey)
	reminders := worker.New(log, store, dispatcher, cfg.ReminderWindow)
	if bot != nil {
		tg = telegram.New(log, bot, app)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
		<-sigCh
		log.Info("Received signal, shutting down...")
		cancel()
	}()

	var wg sync.WaitGroup
	if tg != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tg.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reminders.Run(ctx, cfg.ReminderSchedule); err != nil {
			log.Errorf("reminder worker: %v", err)
			cancel()
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			log.Errorf("http server: %v", err)
			cancel()
		}
	}()
	wg.Wait()
	app.Close()
	log.Info("Server stopped")
}

func newBot(token string) (*tele.Bot, error) {
	if token == "" {
		return nil, nil
	}
	return telegram.NewBot(token)
}

// signingKey reads the RSA key tokens are signed with. Without a key file an
// ephemeral one is generated, so tokens do not survive a restart.
func signingKey(log *logrus.Logger, path string) (*rsa.PrivateKey, error) {
	if path == "" {
		log.Warn("JWT_KEY_PATH is not set, generating an ephemeral signing key")
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("err generating key: %w", err)
		}
		return key, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("err reading key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("err parsing key: %w", err)
	}
	return key, nil
}
