package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/zulandar/labyard/internal/analysis"
	"github.com/zulandar/labyard/internal/api"
	"github.com/zulandar/labyard/internal/attachment"
	"github.com/zulandar/labyard/internal/catalog"
	"github.com/zulandar/labyard/internal/codegen"
	"github.com/zulandar/labyard/internal/config"
	"github.com/zulandar/labyard/internal/db"
	"github.com/zulandar/labyard/internal/logging"
	"github.com/zulandar/labyard/internal/notify"
	"github.com/zulandar/labyard/internal/notify/discord"
	"github.com/zulandar/labyard/internal/notify/slack"
	"github.com/zulandar/labyard/internal/qrevent"
	"github.com/zulandar/labyard/internal/requirement"
	"github.com/zulandar/labyard/internal/sample"
	"github.com/zulandar/labyard/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// loadConfig reads the config file and applies LY_* overrides.
func loadConfig() (*config.Config, error) {
	path := settings.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := settings.GetString("db-password"); v != "" {
		cfg.Database.Password = v
	}
	if v := settings.GetString("jwt-secret"); v != "" {
		cfg.Server.JWTSecret = v
	}
	return cfg, nil
}

func connectFromConfig() (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// app is every collaborator a command may need, built from one config.
type app struct {
	cfg        *config.Config
	db         *gorm.DB
	log        *zap.Logger
	dispatcher *notify.Dispatcher
	redis      *redis.Client
	services   api.Services
}

func newApp(ctx context.Context) (*app, error) {
	cfg, gormDB, err := connectFromConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: gormDB, log: log}

	channels, err := buildChannels(cfg.Notify, log)
	if err != nil {
		return nil, err
	}
	a.dispatcher, err = notify.NewDispatcher(notify.DispatcherOpts{
		Channels: channels,
		Logger:   log,
		Async:    cfg.Notify.Async,
		Timeout:  cfg.Notify.Timeout,
	})
	if err != nil {
		return nil, err
	}

	codes := codegen.NewGenerator(codegen.TableSequence{})
	if cfg.Codegen.Driver == "redis" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		codes = codegen.NewGenerator(&codegen.RedisSequence{Client: a.redis})
	}

	files, err := buildAttachments(ctx, cfg.Attachments)
	if err != nil {
		return nil, err
	}

	if a.services.Requirements, err = requirement.New(requirement.Opts{
		DB: gormDB, Codes: codes, Notifier: a.dispatcher, Attachments: files, Logger: log,
	}); err != nil {
		return nil, err
	}
	if a.services.Samples, err = sample.New(sample.Opts{
		DB: gormDB, Codes: codes, Notifier: a.dispatcher, Logger: log,
	}); err != nil {
		return nil, err
	}
	if a.services.Analyses, err = analysis.New(analysis.Opts{
		DB: gormDB, Notifier: a.dispatcher, Logger: log,
	}); err != nil {
		return nil, err
	}
	if a.services.Storage, err = storage.New(storage.Opts{DB: gormDB, Logger: log}); err != nil {
		return nil, err
	}
	if a.services.QR, err = qrevent.New(gormDB, nil); err != nil {
		return nil, err
	}
	if a.services.Catalog, err = catalog.New(gormDB); err != nil {
		return nil, err
	}
	return a, nil
}

// close drains pending notifications and releases connections.
func (a *app) close() {
	a.dispatcher.Wait()
	if a.redis != nil {
		a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.log.Sync()
}

func buildChannels(cfg config.NotifyConfig, log *zap.Logger) ([]notify.Channel, error) {
	var channels []notify.Channel
	for _, name := range cfg.Channels {
		switch name {
		case "log":
			channels = append(channels, notify.LogChannel{Logger: log})
		case "smtp":
			ch, err := notify.NewSMTPChannel(notify.SMTPOpts{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				Username: cfg.SMTP.Username,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
			})
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case "slack":
			ch, err := slack.New(slack.ChannelOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case "discord":
			ch, err := discord.New(discord.ChannelOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}
	return channels, nil
}

func buildAttachments(ctx context.Context, cfg config.AttachmentConfig) (attachment.Store, error) {
	switch cfg.Driver {
	case "s3":
		return attachment.NewS3(ctx, attachment.S3Config{
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			PathStyle:       cfg.PathStyle,
		})
	case "minio":
		return attachment.NewMinIO(attachment.MinIOConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	default:
		return attachment.NewMemory(), nil
	}
}
