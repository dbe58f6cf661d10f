package interceptors

// Default chain positions for the built-in interceptors. Lower values run
// earlier, so recovery wraps everything and validation sits next to the
// handler. The band leaves plenty of room below zero for application
// interceptors that need to slot in between.
const (
	OrderRecovery       = -1000
	OrderTracing        = -900
	OrderLogging        = -800
	OrderMetrics        = -700
	OrderTimeout        = -600
	OrderCircuitBreaker = -500
	OrderRetry          = -400
	OrderValidation     = -300
)
