package channel

var loggerWarnF func(format string, v ...interface{})

func warnF(format string, v ...interface{}) {
	if loggerWarnF != nil {
		loggerWarnF(format, v...)
	}
}

// SetWarnLogger sets where the package reports misuse such as a Sender
// that was never closed.
func SetWarnLogger(f func(format string, v ...interface{})) {
	loggerWarnF = f
}
