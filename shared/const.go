package shared

const (
	AdminCookieName    = "encore_admin"
	ClientIDCookieName = "encore_cid"

	// Limit kinds. One persisted counter row exists per (client, kind).
	LimitSubmit     = "submit"
	LimitSearch     = "search"
	LimitAdminLogin = "admin_login"
	LimitSummary    = "summary"
)
