// Package logging wraps logrus with the field conventions used across groupseal.
package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Helper carries the package/function fields of one log site.
type Helper struct {
	fields logrus.Fields
}

// New returns a Helper tagged with pkg and function.
func New(pkg, function string) *Helper {
	return &Helper{
		fields: logrus.Fields{
			"package":  pkg,
			"function": function,
		},
	}
}

// WithField adds one field.
func (h *Helper) WithField(key string, value any) *Helper {
	h.fields[key] = value
	return h
}

// WithFields adds every field of fields.
func (h *Helper) WithFields(fields logrus.Fields) *Helper {
	for k, v := range fields {
		h.fields[k] = v
	}
	return h
}

// WithError records err together with the kind label and failing operation.
func (h *Helper) WithError(err error, kind, operation string) *Helper {
	h.fields["error"] = err.Error()
	h.fields["error_type"] = kind
	h.fields["operation"] = operation
	return h
}

func (h *Helper) Debug(msg string) { logrus.WithFields(h.fields).Debug(msg) }
func (h *Helper) Info(msg string)  { logrus.WithFields(h.fields).Info(msg) }
func (h *Helper) Warn(msg string)  { logrus.WithFields(h.fields).Warn(msg) }
func (h *Helper) Error(msg string) { logrus.WithFields(h.fields).Error(msg) }

// KeyFields renders an identifier as a short hex preview.
// Never pass secret material here.
func KeyFields(name string, id []byte) logrus.Fields {
	n := 10
	if len(id) < n {
		n = len(id)
	}
	return logrus.Fields{name: hex.EncodeToString(id[:n])}
}

// Configure sets the global level and output format ("text" or "json").
func Configure(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)

	switch strings.ToLower(format) {
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log format %q: want text or json", format)
	}
	return nil
}
