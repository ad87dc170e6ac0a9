package user

// Modules gated by the permission table.
const (
	ModuleAcademicYears = "academic_years"
	ModuleClasses       = "classes"
	ModuleBatches       = "batches"
	ModuleStudents      = "students"
	ModuleFees          = "fees"
	ModuleFeeReports    = "fee_reports"
	ModuleReminders     = "reminders"
	ModuleUsers         = "users"
	ModuleActivities    = "activities"
)

// Actions
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// permissions is a flat lookup table: module -> action -> allowed roles.
// No rule composition or inheritance; superadmin always passes.
var permissions = map[string]map[string][]string{
	ModuleAcademicYears: {
		ActionView:   {RoleAdmin, RoleTeacher},
		ActionCreate: {RoleAdmin},
		ActionEdit:   {RoleAdmin},
		ActionDelete: {RoleAdmin},
	},
	ModuleClasses: {
		ActionView:   {RoleAdmin, RoleTeacher},
		ActionCreate: {RoleAdmin},
		ActionEdit:   {RoleAdmin},
		ActionDelete: {RoleAdmin},
	},
	ModuleBatches: {
		ActionView:   {RoleAdmin, RoleTeacher},
		ActionCreate: {RoleAdmin},
		ActionEdit:   {RoleAdmin},
		ActionDelete: {RoleAdmin},
	},
	ModuleStudents: {
		ActionView:   {RoleAdmin, RoleTeacher, RoleParent},
		ActionCreate: {RoleAdmin},
		ActionEdit:   {RoleAdmin},
		ActionDelete: {RoleAdmin},
	},
	ModuleFees: {
		ActionView:   {RoleAdmin, RoleTeacher, RoleParent},
		ActionCreate: {RoleAdmin},
		ActionEdit:   {RoleAdmin},
		ActionDelete: {RoleAdmin},
	},
	ModuleFeeReports: {
		// parents see the pending report filtered down to their own students
		ActionView:   {RoleAdmin, RoleTeacher, RoleParent},
		ActionCreate: {RoleAdmin},
	},
	ModuleReminders: {
		ActionView:   {RoleAdmin, RoleTeacher},
		ActionCreate: {RoleAdmin},
		ActionEdit:   {RoleAdmin},
	},
	ModuleUsers: {
		ActionView:   {RoleAdmin},
		ActionCreate: {RoleAdmin},
		ActionEdit:   {RoleAdmin},
		ActionDelete: {RoleAdmin},
	},
	ModuleActivities: {
		ActionView: {RoleAdmin},
	},
}

// CheckPermission reports whether the role may perform the action on the module.
func CheckPermission(role, module, action string) bool {
	if role == RoleSuperAdmin {
		return true
	}
	actions, ok := permissions[module]
	if !ok {
		return false
	}
	for _, allowed := range actions[action] {
		if allowed == role {
			return true
		}
	}
	return false
}
