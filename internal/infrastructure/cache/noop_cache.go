package cache

import (
	"context"
	"time"

	"civicfix/internal/ports"
)

// Noop is used when cache.driver=none.
type Noop struct{}

var _ ports.Cache = Noop{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Set(context.Context, string, string, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error { return nil }
