package log

// Common field names for structured logging
const (
	FieldComponent          = "component"
	FieldRequestID          = "request_id"
	FieldJobID              = "job_id"
	FieldClientIP           = "client_ip"
	FieldMethod             = "method"
	FieldPath               = "path"
	FieldStatusCode         = "status_code"
	FieldDuration           = "duration_ms"
	FieldError              = "error"
	FieldErrorType          = "error_type"
	FieldOperation          = "operation"
	FieldBudgetCode         = "budget_code"
	FieldBudgetID           = "budget_id"
	FieldClassificationType = "classification_type"
	FieldPeriod             = "period"
	FieldYear               = "year"
	FieldEndpoint           = "endpoint"
	FieldRecords            = "records"
	FieldURL                = "url"
	FieldForecastMethod     = "forecast_method"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSync      = "sync"
	ComponentRetry     = "retry"
	ComponentFetcher   = "fetcher"
	ComponentStorage   = "storage"
	ComponentStats     = "stats"
	ComponentForecast  = "forecast"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentRegistry  = "registry"
	ComponentSheets    = "sheets"
)

// Operations defines standard operation names
const (
	OpSync     = "sync"
	OpRetry    = "retry"
	OpFetch    = "fetch"
	OpUpsert   = "upsert"
	OpForecast = "forecast"
	OpPublish  = "publish"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeUpstream      = "upstream_error"
	ErrorTypeFormat        = "format_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithSyncUnit adds the fields identifying one (budget, classification type) unit
func (f LogFields) WithSyncUnit(budgetCode, classificationType, period string, year int) LogFields {
	f[FieldBudgetCode] = budgetCode
	f[FieldClassificationType] = classificationType
	f[FieldPeriod] = period
	f[FieldYear] = year
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
