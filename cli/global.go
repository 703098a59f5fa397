// Package cli implements the warden command line interface on kingpin.
// Each command is configured by a ConfigureXCommand function and executed by
// an XCommand function taking an explicit input struct, so tests can inject
// stores and skip AWS wiring.
package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	isatty "github.com/mattn/go-isatty"

	"github.com/wardenhq/warden/logging"
	"github.com/wardenhq/warden/notification"
)

// Warden holds global CLI state shared by all commands.
type Warden struct {
	// Debug enables log output to stderr.
	Debug bool

	// Region is the AWS region for DynamoDB and SNS wiring.
	Region string

	// PolicyTable is the DynamoDB table holding policies.
	PolicyTable string

	// RequestTable is the DynamoDB table holding approval requests.
	RequestTable string

	// MFATable is the DynamoDB table holding OTP records.
	MFATable string

	// RateLimitTable is the DynamoDB table backing the OTP verification
	// throttle. Empty disables throttling.
	RateLimitTable string

	// LogFile receives audit log entries as JSON lines. Empty disables
	// file logging.
	LogFile string

	// LogSigningKey is a hex-encoded HMAC key. When set, audit entries
	// written to LogFile carry a tamper-evident signature chain.
	LogSigningKey string

	// LogGroup and LogStream select CloudWatch Logs delivery for audit
	// entries. Empty LogGroup disables it.
	LogGroup  string
	LogStream string

	// SNSTopic is the ARN security events are published to. Empty
	// disables SNS delivery.
	SNSTopic string

	// WebhookURL receives security events as JSON POSTs. Empty disables
	// webhook delivery.
	WebhookURL string

	awsConfig *aws.Config
}

// AWSConfig loads the default AWS configuration once, with the configured
// region applied.
func (w *Warden) AWSConfig(ctx context.Context) (aws.Config, error) {
	if w.awsConfig != nil {
		return *w.awsConfig, nil
	}

	opts := []func(*config.LoadOptions) error{}
	if w.Region != "" {
		opts = append(opts, config.WithRegion(w.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}
	w.awsConfig = &cfg
	return cfg, nil
}

// Logger builds the audit logger from the global flags. With no log
// destination configured it returns a no-op logger, so commands can log
// unconditionally.
func (w *Warden) Logger(ctx context.Context) (logging.Logger, error) {
	signConfig, err := w.signatureConfig()
	if err != nil {
		return nil, err
	}

	if w.LogGroup != "" {
		cfg, err := w.AWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		stream := w.LogStream
		if stream == "" {
			if host, err := os.Hostname(); err == nil {
				stream = host
			} else {
				stream = "warden-cli"
			}
		}
		return logging.NewCloudWatchLogger(cfg, &logging.CloudWatchConfig{
			LogGroupName:  w.LogGroup,
			LogStreamName: stream,
			SignConfig:    signConfig,
		}), nil
	}

	if w.LogFile != "" {
		f, err := os.OpenFile(w.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		if signConfig != nil {
			return logging.NewSignedLogger(f, signConfig), nil
		}
		return logging.NewJSONLogger(f), nil
	}

	return logging.NewNopLogger(), nil
}

func (w *Warden) signatureConfig() (*logging.SignatureConfig, error) {
	if w.LogSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(w.LogSigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode log signing key: %w", err)
	}
	cfg := &logging.SignatureConfig{KeyID: "warden-cli", SecretKey: key}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("log signing key: %w", err)
	}
	return cfg, nil
}

// Notifier builds the security event notifier from the global flags.
// Returns nil when no delivery target is configured.
func (w *Warden) Notifier(ctx context.Context) (notification.Notifier, error) {
	var notifiers []notification.Notifier

	if w.SNSTopic != "" {
		cfg, err := w.AWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		notifiers = append(notifiers, notification.NewSNSNotifier(cfg, w.SNSTopic))
	}
	if w.WebhookURL != "" {
		wh, err := notification.NewWebhookNotifier(notification.WebhookConfig{URL: w.WebhookURL})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, wh)
	}

	if len(notifiers) == 0 {
		return nil, nil
	}
	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return notification.NewMultiNotifier(notifiers...), nil
}

// commandLogger substitutes a no-op logger for a nil one, so commands can
// log without a nil check at every call site.
func commandLogger(l logging.Logger) logging.Logger {
	if l == nil {
		return logging.NewNopLogger()
	}
	return l
}

func isATerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ConfigureGlobals registers the global flags and returns the shared state.
func ConfigureGlobals(app *kingpin.Application) *Warden {
	w := &Warden{}

	app.Flag("debug", "Show debugging output").
		BoolVar(&w.Debug)

	app.Flag("region", "AWS region for DynamoDB and SNS").
		Envar("WARDEN_REGION").
		StringVar(&w.Region)

	app.Flag("policy-table", "DynamoDB table name for policies").
		Default("warden-policies").
		Envar("WARDEN_POLICY_TABLE").
		StringVar(&w.PolicyTable)

	app.Flag("request-table", "DynamoDB table name for approval requests").
		Default("warden-requests").
		Envar("WARDEN_REQUEST_TABLE").
		StringVar(&w.RequestTable)

	app.Flag("mfa-table", "DynamoDB table name for OTP records").
		Default("warden-otp").
		Envar("WARDEN_MFA_TABLE").
		StringVar(&w.MFATable)

	app.Flag("ratelimit-table", "DynamoDB table for OTP verification throttling (empty disables)").
		Default("warden-ratelimit").
		Envar("WARDEN_RATELIMIT_TABLE").
		StringVar(&w.RateLimitTable)

	app.Flag("log-file", "File receiving audit log entries as JSON lines").
		Envar("WARDEN_LOG_FILE").
		StringVar(&w.LogFile)

	app.Flag("log-signing-key", "Hex-encoded HMAC key for tamper-evident audit logs").
		Envar("WARDEN_LOG_SIGNING_KEY").
		StringVar(&w.LogSigningKey)

	app.Flag("log-group", "CloudWatch Logs group receiving audit entries").
		Envar("WARDEN_LOG_GROUP").
		StringVar(&w.LogGroup)

	app.Flag("log-stream", "CloudWatch Logs stream name (defaults to the hostname)").
		Envar("WARDEN_LOG_STREAM").
		StringVar(&w.LogStream)

	app.Flag("sns-topic", "SNS topic ARN for security event notifications").
		Envar("WARDEN_SNS_TOPIC").
		StringVar(&w.SNSTopic)

	app.Flag("webhook-url", "Webhook endpoint for security event notifications").
		Envar("WARDEN_WEBHOOK_URL").
		StringVar(&w.WebhookURL)

	app.PreAction(func(c *kingpin.ParseContext) error {
		if !w.Debug {
			log.SetOutput(io.Discard)
		}
		log.Printf("warden %s", app.Model().Version)
		return nil
	})

	return w
}
