package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/wardenhq/warden/infrastructure"
)

// TableProvisioner is the subset of infrastructure.TableProvisioner the
// bootstrap command uses. It exists so tests can inject a fake.
type TableProvisioner interface {
	Create(ctx context.Context, schema infrastructure.TableSchema) (*infrastructure.ProvisionResult, error)
	Plan(ctx context.Context, schema infrastructure.TableSchema) (*infrastructure.ProvisionPlan, error)
}

// BootstrapCommandInput contains the input for the bootstrap command.
type BootstrapCommandInput struct {
	PolicyTable    string
	RequestTable   string
	MFATable       string
	SettingsTable  string
	RateLimitTable string

	// DryRun prints the provisioning plan without creating anything.
	DryRun bool

	// Provisioner is overridable for testing. If nil, a DynamoDB-backed
	// provisioner is created from the global configuration.
	Provisioner TableProvisioner

	// Stdout is overridable for testing.
	Stdout io.Writer
}

// ConfigureBootstrapCommand sets up the bootstrap command with kingpin.
func ConfigureBootstrapCommand(app *kingpin.Application, w *Warden) {
	input := BootstrapCommandInput{}

	cmd := app.Command("bootstrap", "Provision the DynamoDB tables Warden stores state in")

	cmd.Flag("settings-table", "DynamoDB table for system settings").
		Default("warden-settings").
		Envar("WARDEN_SETTINGS_TABLE").
		StringVar(&input.SettingsTable)

	cmd.Flag("dry-run", "Show the provisioning plan without creating tables").
		BoolVar(&input.DryRun)

	cmd.Action(func(c *kingpin.ParseContext) error {
		input.PolicyTable = w.PolicyTable
		input.RequestTable = w.RequestTable
		input.MFATable = w.MFATable
		input.RateLimitTable = w.RateLimitTable
		if input.Provisioner == nil {
			cfg, err := w.AWSConfig(context.Background())
			if err != nil {
				app.FatalIfError(err, "bootstrap")
			}
			input.Provisioner = infrastructure.NewTableProvisioner(cfg, w.Region)
		}
		err := BootstrapCommand(context.Background(), input)
		app.FatalIfError(err, "bootstrap")
		return nil
	})
}

func (input BootstrapCommandInput) schemas() []infrastructure.TableSchema {
	schemas := []infrastructure.TableSchema{
		infrastructure.PolicyTableSchema(input.PolicyTable),
		infrastructure.RequestTableSchema(input.RequestTable),
		infrastructure.OTPTableSchema(input.MFATable),
		infrastructure.SettingsTableSchema(input.SettingsTable),
	}
	// An empty ratelimit table means throttling is disabled.
	if input.RateLimitTable != "" {
		schemas = append(schemas, infrastructure.RateLimitTableSchema(input.RateLimitTable))
	}
	return schemas
}

// BootstrapCommand provisions every Warden table, or prints the plan with
// --dry-run. Provisioning is idempotent: existing tables are reported and
// left untouched.
func BootstrapCommand(ctx context.Context, input BootstrapCommandInput) error {
	stdout := input.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if input.DryRun {
		for _, schema := range input.schemas() {
			plan, err := input.Provisioner.Plan(ctx, schema)
			if err != nil {
				return fmt.Errorf("plan %s: %w", schema.TableName, err)
			}
			if err := enc.Encode(plan); err != nil {
				return err
			}
		}
		return nil
	}

	failed := 0
	for _, schema := range input.schemas() {
		result, err := input.Provisioner.Create(ctx, schema)
		if err != nil {
			return fmt.Errorf("provision %s: %w", schema.TableName, err)
		}
		if result.Status == infrastructure.StatusFailed {
			failed++
			fmt.Fprintf(stdout, "%s: FAILED: %v\n", result.TableName, result.Error)
			continue
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d tables failed to provision", failed)
	}
	return nil
}
