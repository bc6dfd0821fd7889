package notification

import (
	"time"
)

type Action int

const (
	ActionMove Action = iota + 1
	ActionCleanup
	ActionAudit
)

type Sender interface {
	CanSend() bool
	Send(title string, description string, runTime time.Duration, fields []Field, dryRun bool) error
	BuildField(action Action, options BuildOptions) Field
	Name() string
}

type Field struct {
	Name  string
	Value string
}

type BuildOptions struct {
	Path      string
	SizeBytes int64

	From string
	To   string

	IsFile bool
}
