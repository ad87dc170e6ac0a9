package user

import "testing"

func TestCheckPermission(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		module string
		action string
		want   bool
	}{
		{name: "superadmin passes everything", role: RoleSuperAdmin, module: ModuleUsers, action: ActionDelete, want: true},
		{name: "superadmin passes unknown module", role: RoleSuperAdmin, module: "nope", action: ActionView, want: true},
		{name: "admin can create fees", role: RoleAdmin, module: ModuleFees, action: ActionCreate, want: true},
		{name: "admin can view pending fee reports", role: RoleAdmin, module: ModuleFeeReports, action: ActionView, want: true},
		{name: "teacher can view pending fee reports", role: RoleTeacher, module: ModuleFeeReports, action: ActionView, want: true},
		{name: "teacher cannot reconcile fee links", role: RoleTeacher, module: ModuleFeeReports, action: ActionCreate, want: false},
		{name: "teacher cannot create fees", role: RoleTeacher, module: ModuleFees, action: ActionCreate, want: false},
		{name: "parent can view fees", role: RoleParent, module: ModuleFees, action: ActionView, want: true},
		{name: "parent can view fee reports", role: RoleParent, module: ModuleFeeReports, action: ActionView, want: true},
		{name: "parent cannot reconcile fee links", role: RoleParent, module: ModuleFeeReports, action: ActionCreate, want: false},
		{name: "parent cannot manage users", role: RoleParent, module: ModuleUsers, action: ActionView, want: false},
		{name: "unknown module denied", role: RoleAdmin, module: "nope", action: ActionView, want: false},
		{name: "unknown action denied", role: RoleAdmin, module: ModuleFees, action: "nope", want: false},
		{name: "empty role denied", role: "", module: ModuleFees, action: ActionView, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPermission(tt.role, tt.module, tt.action); got != tt.want {
				t.Errorf("CheckPermission(%q, %q, %q) = %v; want %v", tt.role, tt.module, tt.action, got, tt.want)
			}
		})
	}
}
