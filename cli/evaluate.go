package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/wardenhq/warden/identity"
	"github.com/wardenhq/warden/logging"
	"github.com/wardenhq/warden/notification"
	"github.com/wardenhq/warden/policy"
)

// EvaluateCommandInput contains the input for the evaluate command.
type EvaluateCommandInput struct {
	User       string
	Role       string
	Server     string
	ClientIP   string
	Purpose    string
	Command    string
	PolicyFile string

	// Store is an optional policy store for testing. If nil, the policy
	// file is loaded into a memory store.
	Store policy.Store

	// Logger receives the decision audit entry. If nil, the logger is
	// built from the global configuration.
	Logger logging.Logger

	// Audit receives configuration warnings found during evaluation. If
	// nil, the sink is built from the global notification configuration.
	Audit policy.AuditSink

	// Stdout is overridable for testing.
	Stdout io.Writer
}

// EvaluateCommandOutput is the JSON output of the evaluate command.
type EvaluateCommandOutput struct {
	Outcome           string   `json:"outcome"`
	PolicyID          string   `json:"policy_id,omitempty"`
	Reasons           []string `json:"reasons"`
	ApprovalRequestID string   `json:"approval_request_id,omitempty"`
	Message           string   `json:"message"`
}

// ConfigureEvaluateCommand sets up the evaluate command with kingpin.
func ConfigureEvaluateCommand(app *kingpin.Application, w *Warden) {
	input := EvaluateCommandInput{}

	cmd := app.Command("evaluate", "Evaluate a session request against a policy document")

	cmd.Flag("user", "User ID requesting access").
		Required().
		StringVar(&input.User)

	cmd.Flag("role", "Role of the requesting user").
		Required().
		StringVar(&input.Role)

	cmd.Flag("server", "Target server ID").
		Required().
		StringVar(&input.Server)

	cmd.Flag("client-ip", "Source address of the request").
		StringVar(&input.ClientIP)

	cmd.Flag("purpose", "Stated purpose of the session").
		Default("ad-hoc evaluation").
		StringVar(&input.Purpose)

	cmd.Flag("command", "Command to check against command filters").
		StringVar(&input.Command)

	cmd.Flag("policy-file", "YAML policy document to evaluate against").
		Required().
		StringVar(&input.PolicyFile)

	cmd.Action(func(c *kingpin.ParseContext) error {
		ctx := context.Background()
		logger, err := w.Logger(ctx)
		if err != nil {
			app.FatalIfError(err, "evaluate")
		}
		input.Logger = logger

		notifier, err := w.Notifier(ctx)
		if err != nil {
			app.FatalIfError(err, "evaluate")
		}
		if notifier != nil {
			input.Audit = notification.NewSecuritySink(notifier)
		}

		err = EvaluateCommand(ctx, input)
		app.FatalIfError(err, "evaluate")
		return nil
	})
}

// EvaluateCommand evaluates a single session request and prints the decision.
func EvaluateCommand(ctx context.Context, input EvaluateCommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	role, err := identity.ParseRole(input.Role)
	if err != nil {
		return fmt.Errorf("role %q: %w", input.Role, err)
	}

	store := input.Store
	if store == nil {
		data, err := os.ReadFile(input.PolicyFile)
		if err != nil {
			return fmt.Errorf("read policy document: %w", err)
		}
		doc, err := policy.ParseDocument(data)
		if err != nil {
			return fmt.Errorf("parse policy document: %w", err)
		}
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("invalid policy document: %w", err)
		}

		mem := policy.NewMemoryStore(nil)
		for _, p := range doc.Policies {
			if err := mem.Put(p); err != nil {
				return fmt.Errorf("load policy %q: %w", p.ID, err)
			}
		}
		store = mem
	}

	evaluator := policy.NewEvaluator(store)
	evaluator.Audit = input.Audit

	req := &policy.AccessRequest{
		UserID:   input.User,
		Role:     role,
		ServerID: input.Server,
		ClientIP: input.ClientIP,
		Purpose:  input.Purpose,
		Command:  input.Command,
		Time:     time.Now(),
	}
	decision, err := evaluator.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	commandLogger(input.Logger).LogDecision(logging.NewDecisionLogEntry(req, decision))

	out := EvaluateCommandOutput{
		Outcome:           string(decision.Outcome),
		PolicyID:          decision.MatchedPolicyID,
		Reasons:           decision.Reasons,
		ApprovalRequestID: decision.ApprovalRequestID,
		Message:           decision.UserMessage(),
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
