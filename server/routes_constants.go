package server

// Routes served outside the route table
const (
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
	RouteLogout  = "/logout"
	RouteTheme   = "/preferences/theme"

	// Form actions appended to the href of the route they are guarded by
	ActionRate     = "/{id}/rate"
	ActionRead     = "/{id}/read"
	ActionDecision = "/{decision}"
)
