package core

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ReconnectPolicy configures the exponential backoff used by REQ and SUB
// while reconnecting to a lost peer (spec §4.3): configurable base, cap and
// +-20% jitter, built directly on github.com/cenkalti/backoff/v4 rather
// than a hand-rolled timer loop.
type ReconnectPolicy struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64
}

// DefaultReconnectPolicy matches the spec's defaults: 500ms base, 5s cap,
// +-20% jitter.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Base:   500 * time.Millisecond,
		Cap:    5 * time.Second,
		Jitter: 0.2,
	}
}

// NewBackOff builds a fresh backoff.BackOff from the policy. A fresh
// instance should be requested each time a reconnect loop starts, since
// backoff.ExponentialBackOff is stateful (it tracks elapsed attempts).
func (p ReconnectPolicy) NewBackOff() backoff.BackOff {
	if p.Base <= 0 {
		p = DefaultReconnectPolicy()
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Base
	eb.MaxInterval = p.Cap
	eb.RandomizationFactor = p.Jitter
	eb.Multiplier = 2.0
	eb.MaxElapsedTime = 0 // retry forever; the caller decides when to give up
	eb.Reset()
	return eb
}
