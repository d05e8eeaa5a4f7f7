package constants

const (
	AppName      = "booking"
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "BOOKING"
)
