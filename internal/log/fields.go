package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldAccountID   = "account_id"
	FieldBudgetID    = "budget_id"
	FieldTemplateID  = "template_id"
	FieldPeriod      = "period"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldPercentUsed = "percent_used"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentDispatcher = "dispatcher"
	ComponentSettlement = "settlement"
	ComponentAlerts     = "alerts"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentNotify     = "notify"
	ComponentWorker     = "worker"
)

// Operations defines standard operation names
const (
	OpSettle   = "settle"
	OpEvaluate = "evaluate"
	OpNotify   = "notify"
	OpDispatch = "dispatch"
	OpMigrate  = "migrate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
