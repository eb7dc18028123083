package logx

type nopLogger struct{}

var nop Logger = nopLogger{}

// Nop returns a Logger that drops every entry.
func Nop() Logger { return nop }

// OrNop returns l, or Nop when l is nil. Constructors use it so callers may pass nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nop
	}
	return l
}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
func (nopLogger) With(...Field) Logger   { return nop }
func (nopLogger) Sync() error            { return nil }
