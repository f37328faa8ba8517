package types

// Logger is the leveled, printf-style logging seam used by every backend
// and peer session. The method set matches the teacher's definition.Logger
// interface; only the default implementation's backing library changed.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})

	// ToggleDebug enables or disables Debug/Debugf output and returns the
	// new state.
	ToggleDebug(value bool) bool
}
