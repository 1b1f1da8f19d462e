package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	var c Root
	c.Channels = []ChannelCfg{{Channel: "wechat"}}
	ApplyDefaults(&c)

	if c.Server.Port != "8080" {
		t.Errorf("port = %s", c.Server.Port)
	}
	if c.Scheduler.BackoffBase != 30*time.Second || c.Scheduler.BackoffFactor != 2.0 {
		t.Errorf("backoff defaults wrong: %v / %v", c.Scheduler.BackoffBase, c.Scheduler.BackoffFactor)
	}
	if c.Scheduler.MaxAttempts != 10 {
		t.Errorf("maxAttempts = %d", c.Scheduler.MaxAttempts)
	}
	if c.Callback.OrphanRetention != 15*time.Minute {
		t.Errorf("orphan retention = %v", c.Callback.OrphanRetention)
	}
	if c.Channels[0].Timeout != 15*time.Second {
		t.Errorf("channel timeout = %v", c.Channels[0].Timeout)
	}
}

func TestApplyDefaultsKeepsExplicit(t *testing.T) {
	var c Root
	c.Scheduler.BackoffBaseSec = 5
	c.Order.ExpireMinutes = 60
	ApplyDefaults(&c)

	if c.Scheduler.BackoffBase != 5*time.Second {
		t.Errorf("explicit backoff overridden: %v", c.Scheduler.BackoffBase)
	}
	if c.Order.ExpireMinutes != 60 {
		t.Errorf("explicit expiry overridden: %d", c.Order.ExpireMinutes)
	}
}
