package main

import (
	"context"

	"github.com/imrishuroy/storykeeper/internal/notify"
)

// Recorder counts delivery outcomes. *aws.Metrics satisfies it.
type Recorder interface {
	notify.FailureRecorder
	Count(ctx context.Context, name string, dimensions map[string]string) error
}
