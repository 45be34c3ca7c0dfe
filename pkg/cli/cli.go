package cli

import (
	"context"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/shoutoutsong/shoutout/pkg/cmd/checkout"
	"github.com/shoutoutsong/shoutout/pkg/cmd/generate"
	"github.com/shoutoutsong/shoutout/pkg/cmd/serve"
	"github.com/shoutoutsong/shoutout/pkg/cmd/share"
	"github.com/shoutoutsong/shoutout/pkg/cmd/status"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("shoutout", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "shoutout [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newServeCommand(),
			newGenerateCommand(),
			newStatusCommand(),
			newCheckoutCommand(),
			newShareCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "shoutout version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func newServeCommand() *ffcli.Command {
	cmd := "serve"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &serve.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.Addr, "addr", "localhost:8000", "address to listen on")
	fs.StringVar(&cfg.FrontendURL, "frontend-url", "", "frontend base url for checkout redirects")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "public base url of this backend")

	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "openai api key")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "", "openai model")
	fs.StringVar(&cfg.OpenAIHost, "openai-host", "", "openai host")

	fs.StringVar(&cfg.MurekaKey, "mureka-key", "", "mureka api key")
	fs.StringVar(&cfg.MurekaHost, "mureka-host", "", "mureka host")

	fs.StringVar(&cfg.StripeKey, "stripe-key", "", "stripe secret key")
	fs.StringVar(&cfg.StripePrice, "stripe-price", "", "stripe price id")
	fs.StringVar(&cfg.StripeWebhookSecret, "stripe-webhook-secret", "", "stripe webhook signing secret")
	fs.StringVar(&cfg.StripeHost, "stripe-host", "", "stripe host")

	fs.StringVar(&cfg.ResendKey, "resend-key", "", "resend api key")
	fs.StringVar(&cfg.ResendHost, "resend-host", "", "resend host")

	fs.StringVar(&cfg.KlaviyoKey, "klaviyo-key", "", "klaviyo api key")
	fs.StringVar(&cfg.KlaviyoList, "klaviyo-list", "", "klaviyo list id")
	fs.StringVar(&cfg.KlaviyoHost, "klaviyo-host", "", "klaviyo host")

	fs.StringVar(&cfg.SharePath, "share-path", "", "path of the share links file")
	fs.DurationVar(&cfg.ShareTTL, "share-ttl", 0, "share link lifetime (0 means a year)")

	fs.StringVar(&cfg.FSType, "fs-type", "", "file storage type (local, s3)")
	fs.StringVar(&cfg.FSConn, "fs-conn", "", "folder for local, key:secret@bucket.region for s3")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("shoutout %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SHOUTOUT"),
		},
		ShortHelp: fmt.Sprintf("shoutout %s command", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return serve.Serve(ctx, cfg)
		},
	}
}

func newGenerateCommand() *ffcli.Command {
	cmd := "generate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &generate.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.DurationVar(&cfg.Wait, "wait", 5*time.Second, "wait time between status polls")

	fs.StringVar(&cfg.OpenAIKey, "openai-key", "", "openai api key")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", "", "openai model")
	fs.StringVar(&cfg.OpenAIHost, "openai-host", "", "openai host")
	fs.StringVar(&cfg.MurekaKey, "mureka-key", "", "mureka api key")
	fs.StringVar(&cfg.MurekaHost, "mureka-host", "", "mureka host")

	fs.StringVar(&cfg.Input, "input", "", "csv, json or yaml file with song requests")
	fs.StringVar(&cfg.Output, "output", "", "csv, json or yaml output file (default prints to stdout)")
	fs.IntVar(&cfg.Limit, "limit", 0, "limit the number of songs (0 means no limit)")
	fs.BoolVar(&cfg.NoWait, "no-wait", false, "submit without waiting for the audio")

	fs.StringVar(&cfg.Kind, "kind", "", "song kind (kid, adult)")
	fs.StringVar(&cfg.ChildName, "child-name", "", "child name for kid songs")
	fs.StringVar(&cfg.Theme, "theme", "", "theme for kid songs")
	fs.StringVar(&cfg.RecipientName, "recipient-name", "", "recipient name for adult songs")
	fs.StringVar(&cfg.Relationship, "relationship", "", "relationship to the recipient")
	fs.StringVar(&cfg.Occasion, "occasion", "", "occasion of the song")
	fs.StringVar(&cfg.StoryOrDetails, "story", "", "story or details for adult songs")
	fs.StringVar(&cfg.Genre, "genre", "", "genre for adult songs")
	fs.StringVar(&cfg.Vibe, "vibe", "", "vibe of the song")
	fs.StringVar(&cfg.VoiceType, "voice-type", "", "voice type (male, female, child)")
	fs.IntVar(&cfg.Duration, "duration", 0, "duration in seconds (0 means the default)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("shoutout %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SHOUTOUT"),
		},
		ShortHelp: fmt.Sprintf("shoutout %s command", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return generate.Run(ctx, cfg)
		},
	}
}

func newStatusCommand() *ffcli.Command {
	cmd := "status"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &status.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.MurekaKey, "mureka-key", "", "mureka api key")
	fs.StringVar(&cfg.MurekaHost, "mureka-host", "", "mureka host")
	fs.StringVar(&cfg.TaskID, "task", "", "task id to query")
	fs.BoolVar(&cfg.Watch, "watch", false, "poll until the task finishes")
	fs.DurationVar(&cfg.Interval, "interval", 5*time.Second, "poll interval")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("shoutout %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SHOUTOUT"),
		},
		ShortHelp: fmt.Sprintf("shoutout %s command", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return status.Run(ctx, cfg)
		},
	}
}

func newCheckoutCommand() *ffcli.Command {
	cmd := "checkout"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &checkout.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.StripeKey, "stripe-key", "", "stripe secret key")
	fs.StringVar(&cfg.StripePrice, "stripe-price", "", "stripe price id")
	fs.StringVar(&cfg.StripeHost, "stripe-host", "", "stripe host")
	fs.StringVar(&cfg.FrontendURL, "frontend-url", "", "frontend base url for checkout redirects")
	fs.StringVar(&cfg.SongID, "song", "", "song id to sell")
	fs.StringVar(&cfg.RecipientName, "recipient-name", "", "recipient name for the delivery email")
	fs.StringVar(&cfg.Subject, "subject", "", "song subject for the delivery email")
	fs.BoolVar(&cfg.Open, "open", false, "open the payment url in the browser")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("shoutout %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SHOUTOUT"),
		},
		ShortHelp: fmt.Sprintf("shoutout %s command", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return checkout.Run(ctx, cfg)
		},
	}
}

func newShareCommand() *ffcli.Command {
	cmd := "share"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &share.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.MurekaKey, "mureka-key", "", "mureka api key")
	fs.StringVar(&cfg.MurekaHost, "mureka-host", "", "mureka host")
	fs.StringVar(&cfg.SharePath, "share-path", "", "path of the share links file")
	fs.DurationVar(&cfg.ShareTTL, "share-ttl", 0, "share link lifetime (0 means a year)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "public base url of the backend")
	fs.StringVar(&cfg.SongID, "song", "", "song id to share")
	fs.StringVar(&cfg.Title, "title", "", "share page title")
	fs.StringVar(&cfg.RecipientName, "recipient-name", "", "recipient name")
	fs.StringVar(&cfg.Subject, "subject", "", "song subject")
	fs.StringVar(&cfg.Lyrics, "lyrics", "", "song lyrics")
	fs.StringVar(&cfg.Token, "token", "", "resolve an existing token instead of creating one")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("shoutout %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("SHOUTOUT"),
		},
		ShortHelp: fmt.Sprintf("shoutout %s command", cmd),
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return share.Run(ctx, cfg)
		},
	}
}
