package logging

import (
	"regexp"

	"go.uber.org/zap/zapcore"
)

const mask = "*****"

var passwordInText = regexp.MustCompile(`(password=)[^&\s]+`)

// Redact wraps core so that password fields and password=... fragments in
// messages or string fields never reach the sink.
func Redact(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

type redactingCore struct {
	zapcore.Core
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = RedactText(ent.Message)
	return c.Core.Write(ent, redactFields(fields))
}

// RedactText masks password=value fragments.
func RedactText(s string) string {
	return passwordInText.ReplaceAllString(s, "${1}"+mask)
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch {
		case f.Key == "password" || f.Key == "pass":
			out[i] = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: mask}
		case f.Type == zapcore.StringType:
			f.String = RedactText(f.String)
			out[i] = f
		default:
			out[i] = f
		}
	}
	return out
}
