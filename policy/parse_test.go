package policy

import (
	"strings"
	"testing"

	"github.com/wardenhq/warden/identity"
)

const sampleDocument = `
version: "1"
policies:
  - id: dev-business-hours
    name: Developer business hours
    priority: 10
    active: true
    days: [monday, tuesday, wednesday, thursday, friday]
    window:
      start: "09:00"
      end: "17:00"
      timezone: America/New_York
    roles: [developer]
    command_mode: denylist
    command_patterns:
      - 'rm -rf'
    scope:
      server_ids: [web-01, web-02]
  - id: admin-anytime
    priority: 100
    active: true
    roles: [admin]
    require_approval: true
    approver_roles: [security_admin]
    scope:
      server_group_ids: [all-servers]
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if doc.Version != "1" {
		t.Errorf("Version = %q, want 1", doc.Version)
	}
	if len(doc.Policies) != 2 {
		t.Fatalf("policy count = %d, want 2", len(doc.Policies))
	}

	dev := doc.Policies[0]
	if dev.ID != "dev-business-hours" {
		t.Errorf("ID = %q", dev.ID)
	}
	if dev.Priority != 10 {
		t.Errorf("Priority = %d, want 10", dev.Priority)
	}
	if len(dev.Days) != 5 || dev.Days[0] != Monday {
		t.Errorf("Days = %v", dev.Days)
	}
	if dev.Window == nil || dev.Window.Start != "09:00" || dev.Window.Timezone != "America/New_York" {
		t.Errorf("Window = %+v", dev.Window)
	}
	if dev.CommandMode != ModeDenylist {
		t.Errorf("CommandMode = %v, want denylist", dev.CommandMode)
	}
	if len(dev.Scope.ServerIDs) != 2 {
		t.Errorf("Scope.ServerIDs = %v", dev.Scope.ServerIDs)
	}

	admin := doc.Policies[1]
	if !admin.RequireApproval {
		t.Error("RequireApproval not parsed")
	}
	if len(admin.ApproverRoles) != 1 || admin.ApproverRoles[0] != identity.RoleSecurityAdmin {
		t.Errorf("ApproverRoles = %v", admin.ApproverRoles)
	}
	if len(admin.Scope.ServerGroupIDs) != 1 {
		t.Errorf("Scope.ServerGroupIDs = %v", admin.Scope.ServerGroupIDs)
	}

	if err := doc.Validate(); err != nil {
		t.Errorf("sample document should validate: %v", err)
	}
}

func TestParseDocument_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "empty input",
			input:   "",
			wantErr: "empty policy document",
		},
		{
			name:    "not yaml",
			input:   "{{{",
			wantErr: "yaml",
		},
		{
			name:    "missing version",
			input:   "policies:\n  - id: p1\n",
			wantErr: "missing version",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tc.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseDocumentFromReader(t *testing.T) {
	doc, err := ParseDocumentFromReader(strings.NewReader(sampleDocument))
	if err != nil {
		t.Fatalf("ParseDocumentFromReader: %v", err)
	}
	if len(doc.Policies) != 2 {
		t.Errorf("policy count = %d, want 2", len(doc.Policies))
	}
}
