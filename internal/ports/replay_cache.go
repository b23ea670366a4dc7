package ports

import (
	"context"
	"time"
)

type (
	// StoredReply is a successful HTTP reply kept for idempotent replays.
	StoredReply struct {
		StatusCode int               `json:"status_code"`
		Headers    map[string]string `json:"headers"`
		Body       []byte            `json:"body"`
		CreatedAt  time.Time         `json:"created_at"`
	}

	// ReplayCache stores replies under replay keys. Get returns nil, nil on a
	// miss. Claim marks a key as in flight for holder and reports false when
	// another holder already has it.
	ReplayCache interface {
		Get(ctx context.Context, key string) (*StoredReply, error)
		Set(ctx context.Context, key string, reply *StoredReply, ttl time.Duration) error
		Claim(ctx context.Context, key, holder string, ttl time.Duration) (bool, error)
		Release(ctx context.Context, key, holder string) error
	}
)
