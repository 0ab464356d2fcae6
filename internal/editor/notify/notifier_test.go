package notify

import (
	"testing"
	"time"
)

// TestNotifyDedup 窗口内相同内容只透出一次，不同内容/级别互不抑制
func TestNotifyDedup(t *testing.T) {
	var got []string
	n := New(time.Minute, func(level Level, message string) {
		got = append(got, string(level)+":"+message)
	})

	if !n.Error("save failed") {
		t.Error("first notification suppressed")
	}
	if n.Error("save failed") {
		t.Error("duplicate within window not suppressed")
	}
	if !n.Error("another problem") {
		t.Error("different content suppressed")
	}
	if !n.Info("save failed") {
		t.Error("same content at different level suppressed")
	}
	if len(got) != 3 {
		t.Errorf("sink received %d notifications: %v", len(got), got)
	}
}

// TestNotifyWindowExpiry 窗口过期后相同内容重新透出
func TestNotifyWindowExpiry(t *testing.T) {
	count := 0
	n := New(time.Minute, func(Level, string) { count++ })

	base := time.Now()
	n.now = func() time.Time { return base }
	n.Success("Automations saved")
	n.now = func() time.Time { return base.Add(30 * time.Second) }
	if n.Success("Automations saved") {
		t.Error("notification inside window not suppressed")
	}
	n.now = func() time.Time { return base.Add(61 * time.Second) }
	if !n.Success("Automations saved") {
		t.Error("notification after window still suppressed")
	}
	if count != 2 {
		t.Errorf("sink received %d notifications", count)
	}
}
