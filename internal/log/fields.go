package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserID     = "user_id"
	FieldUsername   = "username"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldTxnID      = "transaction_id"
	FieldTxnType    = "transaction_type"
	FieldAmount     = "amount"
	FieldCategory   = "category"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentAuth    = "auth"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentInsight = "insight"
	ComponentSession = "session"
	ComponentGateway = "gateway"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpUpsert   = "upsert"
	OpLogin    = "login"
	OpRegister = "register"
	OpLogout   = "logout"
	OpExport   = "export"
	OpAnalyze  = "analyze"
	OpHealth   = "health"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
