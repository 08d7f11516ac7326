package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"workbench/internal/captcha"
	"workbench/internal/client"
	"workbench/internal/config"
	"workbench/internal/console"
	"workbench/internal/tool"
	"workbench/internal/ui"
	"workbench/internal/validate"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config")
	envPath := flag.String("env", ".env", "optional .env file")
	openLink := flag.String("open", "", "workbench link carrying a prefilled video link (?url= or ?u=)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := config.LoadEnvFile(*envPath); err != nil {
		log.Fatal().Err(err).Msg("failed to load env file")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	widget := captcha.NewManualWidget(cfg.Tool.TokenTTL)
	projector := ui.New(console.NewRenderer(os.Stdout), nil)
	projector.SetMinDisplay(cfg.Tool.MinDisplay)

	ctrl := tool.New(tool.Options{
		BackendURL:     cfg.Tool.BackendURL,
		SiteKey:        cfg.Captcha.SiteKey,
		CaptchaEnabled: cfg.Tool.CaptchaEnabled,
		MaxURLLength:   cfg.Tool.MaxURLLength,
		Poll:           cfg.Tool.PollOptions(),
		InitialInput:   initialInput(*openLink, cfg.Tool.MaxURLLength),
	}, tool.Deps{
		NewAPI: func(baseURL string) tool.API {
			return client.New(client.Config{BaseURL: baseURL})
		},
		NewCaptcha: func(cb captcha.Callbacks) tool.Captcha {
			return captcha.New(captcha.Options{
				SiteKey:   cfg.Captcha.SiteKey,
				Loader:    widget.Loader(),
				Theme:     console.Theme,
				Timeout:   cfg.Tool.CaptchaLoadTimeout,
				Callbacks: cb,
			})
		},
		Clipboard: console.Clipboard{},
		Opener:    console.Opener{},
		Projector: projector,
	})
	defer ctrl.Teardown()

	fmt.Fprintln(os.Stdout, "workbench: YouTube download tool (type help)")
	session := console.NewSession(ctrl, widget, os.Stdout)
	if err := session.Run(ctx, os.Stdin); err != nil {
		log.Error().Err(err).Msg("console session ended")
	}
}

func initialInput(link string, maxLength int) string {
	if link == "" {
		return ""
	}
	parsed, err := url.Parse(link)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring malformed -open link")
		return ""
	}
	return validate.MountOptions(parsed.Query(), maxLength)
}
