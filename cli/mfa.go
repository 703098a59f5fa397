package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"golang.org/x/term"

	wardenerrors "github.com/wardenhq/warden/errors"
	"github.com/wardenhq/warden/logging"
	"github.com/wardenhq/warden/mfa"
	"github.com/wardenhq/warden/notification"
	"github.com/wardenhq/warden/ratelimit"
)

// MFACommandInput contains the shared input for the mfa subcommands.
type MFACommandInput struct {
	UserID  string
	AdminID string

	// Code is an optional OTP code. Empty means prompt for hidden input.
	Code string

	// Store is an optional record store for testing. If nil, a DynamoDB
	// store is created from the global configuration.
	Store mfa.RecordStore

	// Limiter throttles verification attempts. If nil, a DynamoDB
	// limiter is created from the global configuration unless throttling
	// is disabled.
	Limiter ratelimit.Limiter

	// Logger receives MFA audit entries. If nil, the logger is built
	// from the global configuration.
	Logger logging.Logger

	// Events receives lock and reset transitions. If nil, the sink is
	// built from the global notification configuration.
	Events mfa.EventSink

	// ReadCode is overridable for testing; the default reads a hidden
	// code from the terminal.
	ReadCode func() (string, error)

	// Stdout is overridable for testing.
	Stdout io.Writer
}

// MFAStatusOutput is the JSON output of the mfa status command.
type MFAStatusOutput struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// ConfigureMFACommands sets up the mfa subcommands with kingpin.
func ConfigureMFACommands(app *kingpin.Application, w *Warden) {
	cmd := app.Command("mfa", "MFA enrollment and verification commands")

	statusInput := MFACommandInput{}
	status := cmd.Command("status", "Show a user's MFA enrollment status")
	status.Arg("user-id", "The user to inspect").
		Required().
		StringVar(&statusInput.UserID)
	status.Action(func(c *kingpin.ParseContext) error {
		if err := bindMFADeps(&statusInput, w); err != nil {
			app.FatalIfError(err, "mfa status")
		}
		err := MFAStatusCommand(context.Background(), statusInput)
		app.FatalIfError(err, "mfa status")
		return nil
	})

	verifyInput := MFACommandInput{}
	verify := cmd.Command("verify", "Verify an OTP code for a user")
	verify.Arg("user-id", "The user to verify").
		Required().
		StringVar(&verifyInput.UserID)
	verify.Flag("code", "OTP code (omit to be prompted without echo)").
		StringVar(&verifyInput.Code)
	verify.Action(func(c *kingpin.ParseContext) error {
		if err := bindMFADeps(&verifyInput, w); err != nil {
			app.FatalIfError(err, "mfa verify")
		}
		err := MFAVerifyCommand(context.Background(), verifyInput)
		app.FatalIfError(err, "mfa verify")
		return nil
	})

	resetInput := MFACommandInput{}
	reset := cmd.Command("reset", "Reset a user's MFA enrollment (administrators)")
	reset.Arg("user-id", "The user to reset").
		Required().
		StringVar(&resetInput.UserID)
	reset.Flag("admin", "User ID of the administrator performing the reset").
		Required().
		Envar("WARDEN_USER").
		StringVar(&resetInput.AdminID)
	reset.Action(func(c *kingpin.ParseContext) error {
		if err := bindMFADeps(&resetInput, w); err != nil {
			app.FatalIfError(err, "mfa reset")
		}
		err := MFAResetCommand(context.Background(), resetInput)
		app.FatalIfError(err, "mfa reset")
		return nil
	})
}

// bindMFADeps fills in the production store, limiter, logger, and event sink
// from the global configuration. Inputs with an injected store are left
// alone, so tests control the full dependency set.
func bindMFADeps(input *MFACommandInput, w *Warden) error {
	if input.Store != nil {
		return nil
	}
	ctx := context.Background()

	cfg, err := w.AWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	input.Store = mfa.NewDynamoDBRecordStore(cfg, w.MFATable)

	if w.RateLimitTable != "" {
		limiter, err := ratelimit.NewDynamoDBLimiter(
			dynamodb.NewFromConfig(cfg), w.RateLimitTable, ratelimit.DefaultVerifyConfig())
		if err != nil {
			return fmt.Errorf("configure rate limiter: %w", err)
		}
		input.Limiter = limiter
	}

	logger, err := w.Logger(ctx)
	if err != nil {
		return err
	}
	input.Logger = logger

	notifier, err := w.Notifier(ctx)
	if err != nil {
		return err
	}
	if notifier != nil {
		input.Events = notification.NewSecuritySink(notifier)
	}
	return nil
}

// MFAStatusCommand prints a user's enrollment status as JSON.
func MFAStatusCommand(ctx context.Context, input MFACommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	service := mfa.NewService(input.Store, mfa.Config{})
	status, err := service.Status(ctx, input.UserID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(MFAStatusOutput{UserID: input.UserID, Status: string(status)})
}

// MFAVerifyCommand verifies an OTP code for a user. The code is prompted
// without echo when not passed as a flag.
func MFAVerifyCommand(ctx context.Context, input MFACommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	code := input.Code
	if code == "" {
		readCode := input.ReadCode
		if readCode == nil {
			readCode = promptHiddenCode
		}
		var err error
		code, err = readCode()
		if err != nil {
			return err
		}
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("no code entered")
	}

	logger := commandLogger(input.Logger)
	service := mfa.NewService(input.Store, mfa.Config{})
	service.Limiter = input.Limiter
	service.Events = input.Events

	if err := service.VerifyLogin(ctx, input.UserID, code); err != nil {
		logger.LogMFA(logging.NewMFALogEntry(
			logging.MFAEventLoginFailure, input.UserID, wardenerrors.GetCode(err)))
		return err
	}
	logger.LogMFA(logging.NewMFALogEntry(
		logging.MFAEventLoginSuccess, input.UserID, string(mfa.StatusEnabled)))

	fmt.Fprintln(stdout, "verified")
	return nil
}

// MFAResetCommand resets a user's enrollment on behalf of an administrator.
func MFAResetCommand(ctx context.Context, input MFACommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	service := mfa.NewService(input.Store, mfa.Config{})
	service.Events = input.Events
	if err := service.AdminReset(ctx, input.UserID, input.AdminID); err != nil {
		return err
	}
	commandLogger(input.Logger).LogMFA(logging.NewMFALogEntry(
		logging.MFAEventReset, input.UserID, string(mfa.StatusResetRequired)).
		WithReset(input.AdminID))

	fmt.Fprintf(stdout, "MFA reset for %s; the user must re-enroll\n", input.UserID)
	return nil
}

func promptHiddenCode() (string, error) {
	fmt.Fprint(os.Stderr, "OTP code: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
