package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTransactionID = "transaction_id"
	FieldTemplateID    = "template_id"
	FieldCategoryID    = "category_id"
	FieldAccountID     = "account_id"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldPeriod        = "period"
	FieldBase          = "base"
	FieldQuote         = "quote"
	FieldAsOf          = "as_of"
	FieldEventType     = "event_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentRecurring = "recurring"
	ComponentBudget    = "budget"
	ComponentRates     = "rates"
	ComponentCache     = "cache"
	ComponentMetrics   = "metrics"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpMaterialize = "materialize"
	OpRefresh     = "refresh"
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

// WithError adds error field
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

// WithMoney adds the amount and its currency.
func (f LogFields) WithMoney(amount, currency string) LogFields {
	f[FieldAmount] = amount
	f[FieldCurrency] = currency
	return f
}

// WithPair adds a currency pair.
func (f LogFields) WithPair(base, quote string) LogFields {
	f[FieldBase] = base
	f[FieldQuote] = quote
	return f
}

// With adds an arbitrary field.
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
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
