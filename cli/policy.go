package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/wardenhq/warden/policy"
)

// PolicyLintCommandInput contains the input for the policy lint command.
type PolicyLintCommandInput struct {
	// File is the path of the YAML policy document. "-" reads stdin.
	File string

	// JSON switches the report to machine-readable output.
	JSON bool

	// Stdin and Stdout are overridable for testing.
	Stdin  io.Reader
	Stdout io.Writer
}

// PolicyLintReport is the JSON output of the policy lint command.
type PolicyLintReport struct {
	Policies int               `json:"policies"`
	Issues   []PolicyLintIssue `json:"issues"`
}

// PolicyLintIssue is one reported problem.
type PolicyLintIssue struct {
	Type     string `json:"type"`
	PolicyID string `json:"policy_id"`
	Message  string `json:"message"`
}

// ConfigurePolicyLintCommand sets up the policy lint command with kingpin.
func ConfigurePolicyLintCommand(app *kingpin.Application) {
	input := PolicyLintCommandInput{}

	cmd := app.Command("policy", "Policy management commands")
	lint := cmd.Command("lint", "Validate and lint a YAML policy document")

	lint.Arg("file", "Policy document path (\"-\" for stdin)").
		Required().
		StringVar(&input.File)

	lint.Flag("json", "Output the report as JSON").
		BoolVar(&input.JSON)

	lint.Action(func(c *kingpin.ParseContext) error {
		err := PolicyLintCommand(input)
		app.FatalIfError(err, "policy lint")
		return nil
	})
}

// PolicyLintCommand parses, validates, and lints a policy document.
// Validation errors and lint issues are reported; any issue makes the
// command fail so it can gate CI pipelines.
func PolicyLintCommand(input PolicyLintCommandInput) error {
	stdin := input.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	var data []byte
	var err error
	if input.File == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(input.File)
	}
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

	issues := policy.Lint(doc.Policies)

	report := PolicyLintReport{
		Policies: len(doc.Policies),
		Issues:   make([]PolicyLintIssue, 0, len(issues)),
	}
	for _, issue := range issues {
		report.Issues = append(report.Issues, PolicyLintIssue{
			Type:     string(issue.Type),
			PolicyID: issue.PolicyID,
			Message:  issue.Message,
		})
	}

	if input.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(stdout, "%d policies checked\n", report.Policies)
		for _, issue := range report.Issues {
			fmt.Fprintf(stdout, "%s: %s: %s\n", issue.Type, issue.PolicyID, issue.Message)
		}
	}

	if len(report.Issues) > 0 {
		return fmt.Errorf("%d lint issues found", len(report.Issues))
	}
	return nil
}
