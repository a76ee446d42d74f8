package gateway

const (
	DriverAuto           = "auto"
	DriverAfricasTalking = "africastalking"
	DriverNATS           = "nats"
	DriverLog            = "log"
)

// ResolveDriver turns "auto" into a concrete driver: Africa's Talking when
// credentials exist, NATS when a server URL is set, else log.
func ResolveDriver(driver string, atConfigured, natsConfigured bool) string {
	if driver != DriverAuto && driver != "" {
		return driver
	}
	switch {
	case atConfigured:
		return DriverAfricasTalking
	case natsConfigured:
		return DriverNATS
	default:
		return DriverLog
	}
}
