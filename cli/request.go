package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/alecthomas/kingpin/v2"

	"github.com/wardenhq/warden/identity"
	"github.com/wardenhq/warden/logging"
	"github.com/wardenhq/warden/notification"
	"github.com/wardenhq/warden/request"
)

// DefaultApprovalTTL is how long a pending request lives before lazy expiry.
const DefaultApprovalTTL = time.Hour

// RequestCommandInput contains the shared input for the request commands.
type RequestCommandInput struct {
	RequestID string
	Comment   string
	Approver  string
	Role      string

	// Yes skips the interactive confirmation prompt.
	Yes bool

	// Store is an optional Store implementation for testing. If nil, a
	// DynamoDB store is created from the global configuration.
	Store request.Store

	// Notifier receives request lifecycle events. If nil, the notifier
	// is built from the global configuration; decisions then go
	// unannounced when no delivery target is configured.
	Notifier notification.Notifier

	// Logger receives approval audit entries. If nil, the logger is
	// built from the global configuration.
	Logger logging.Logger

	// Stdout is overridable for testing.
	Stdout io.Writer
}

// RequestDecisionOutput is the JSON output of the approve and reject commands.
type RequestDecisionOutput struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"server_id"`
	Requester string    `json:"requester"`
	Status    string    `json:"status"`
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}

// RequestListOutput is one row of the request list command output.
type RequestListOutput struct {
	ID        string    `json:"id"`
	Requester string    `json:"requester"`
	ServerID  string    `json:"server_id"`
	Purpose   string    `json:"purpose"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfigureRequestCommands sets up the request subcommands with kingpin.
func ConfigureRequestCommands(app *kingpin.Application, w *Warden) {
	cmd := app.Command("request", "Approval request commands")

	listInput := RequestCommandInput{}
	list := cmd.Command("list", "List pending approval requests")
	list.Action(func(c *kingpin.ParseContext) error {
		if err := bindStore(&listInput, w); err != nil {
			app.FatalIfError(err, "request list")
		}
		err := RequestListCommand(context.Background(), listInput)
		app.FatalIfError(err, "request list")
		return nil
	})

	approveInput := RequestCommandInput{}
	approve := cmd.Command("approve", "Approve a pending access request")
	configureDecisionFlags(approve, &approveInput)
	approve.Action(func(c *kingpin.ParseContext) error {
		if err := bindStore(&approveInput, w); err != nil {
			app.FatalIfError(err, "request approve")
		}
		err := RequestApproveCommand(context.Background(), approveInput)
		app.FatalIfError(err, "request approve")
		return nil
	})

	rejectInput := RequestCommandInput{}
	reject := cmd.Command("reject", "Reject a pending access request")
	configureDecisionFlags(reject, &rejectInput)
	reject.Action(func(c *kingpin.ParseContext) error {
		if err := bindStore(&rejectInput, w); err != nil {
			app.FatalIfError(err, "request reject")
		}
		err := RequestRejectCommand(context.Background(), rejectInput)
		app.FatalIfError(err, "request reject")
		return nil
	})
}

func configureDecisionFlags(cmd *kingpin.CmdClause, input *RequestCommandInput) {
	cmd.Arg("request-id", "The request ID to decide").
		Required().
		StringVar(&input.RequestID)

	cmd.Flag("approver", "User ID of the deciding approver").
		Required().
		Envar("WARDEN_USER").
		StringVar(&input.Approver)

	cmd.Flag("role", "Role of the deciding approver").
		Required().
		Envar("WARDEN_ROLE").
		StringVar(&input.Role)

	cmd.Flag("comment", "Optional comment recorded with the decision").
		StringVar(&input.Comment)

	cmd.Flag("yes", "Skip the confirmation prompt").
		Short('y').
		BoolVar(&input.Yes)
}

// bindStore fills in the production store, notifier, and logger from the
// global configuration. Inputs with an injected store are left alone, so
// tests control the full dependency set.
func bindStore(input *RequestCommandInput, w *Warden) error {
	if input.Store != nil {
		return nil
	}
	ctx := context.Background()

	cfg, err := w.AWSConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}
	input.Store = request.NewDynamoDBStore(cfg, w.RequestTable)

	notifier, err := w.Notifier(ctx)
	if err != nil {
		return err
	}
	input.Notifier = notifier

	logger, err := w.Logger(ctx)
	if err != nil {
		return err
	}
	input.Logger = logger
	return nil
}

// RequestListCommand prints pending requests as JSON lines, newest first.
func RequestListCommand(ctx context.Context, input RequestCommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	workflow := request.NewWorkflow(input.Store, DefaultApprovalTTL)
	pending, err := workflow.ListPending(ctx, 0)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	for _, req := range pending {
		row := RequestListOutput{
			ID:        req.ID,
			Requester: req.Requester,
			ServerID:  req.ServerID,
			Purpose:   req.Purpose,
			Status:    string(req.Status),
			CreatedAt: req.CreatedAt,
			ExpiresAt: req.ExpiresAt,
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

// RequestApproveCommand approves a pending access request.
func RequestApproveCommand(ctx context.Context, input RequestCommandInput) error {
	return decideRequest(ctx, input, request.StatusApproved)
}

// RequestRejectCommand rejects a pending access request.
func RequestRejectCommand(ctx context.Context, input RequestCommandInput) error {
	return decideRequest(ctx, input, request.StatusRejected)
}

func decideRequest(ctx context.Context, input RequestCommandInput, target request.Status) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	if !request.ValidateRequestID(input.RequestID) {
		return fmt.Errorf("invalid request ID %q (must be 16 lowercase hex characters)", input.RequestID)
	}
	role, err := identity.ParseRole(input.Role)
	if err != nil {
		return fmt.Errorf("role %q: %w", input.Role, err)
	}
	approver := identity.Principal{UserID: input.Approver, Role: role}

	store := input.Store
	if input.Notifier != nil {
		store = notification.NewNotifyStore(store, input.Notifier)
	}
	workflow := request.NewWorkflow(store, DefaultApprovalTTL)

	req, err := workflow.Get(ctx, input.RequestID)
	if err != nil {
		return err
	}

	if !input.Yes {
		if !isATerminal() {
			return errors.New("refusing to decide without confirmation; pass --yes in non-interactive use")
		}
		verb := "Approve"
		if target == request.StatusRejected {
			verb = "Reject"
		}
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("%s request %s from %s for %s (%q)?",
				verb, req.ID, req.Requester, req.ServerID, req.Purpose),
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			return errors.New("aborted")
		}
	}

	var decided *request.Request
	if target == request.StatusApproved {
		decided, err = workflow.Approve(ctx, input.RequestID, approver, input.Comment)
	} else {
		decided, err = workflow.Reject(ctx, input.RequestID, approver, input.Comment)
	}
	if err != nil {
		return err
	}

	eventType := notification.EventRequestApproved
	if target == request.StatusRejected {
		eventType = notification.EventRequestRejected
	}
	commandLogger(input.Logger).LogApproval(
		logging.NewApprovalLogEntry(eventType, decided, approver.UserID))

	out := RequestDecisionOutput{
		ID:        decided.ID,
		ServerID:  decided.ServerID,
		Requester: decided.Requester,
		Status:    string(decided.Status),
		DecidedBy: decided.DecidedBy,
	}
	if decided.DecidedAt != nil {
		out.DecidedAt = *decided.DecidedAt
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
