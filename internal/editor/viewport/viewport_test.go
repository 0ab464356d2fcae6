package viewport

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b Point) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon
}

// TestRoundTrip 屏幕 → 世界 → 屏幕换算闭环
func TestRoundTrip(t *testing.T) {
	v := Viewport{PanX: 120, PanY: -45, Zoom: 1.7}
	points := []Point{{0, 0}, {100, 200}, {-50, 7.5}, {6000, -8000}}
	for _, s := range points {
		back := v.WorldToScreen(v.ScreenToWorld(s))
		if !almostEqual(s, back) {
			t.Errorf("round trip %+v -> %+v", s, back)
		}
	}
}

// TestZoomAtAnchorInvariant 锚点缩放前后，锚点下的世界坐标保持不动
func TestZoomAtAnchorInvariant(t *testing.T) {
	v := Viewport{PanX: 80, PanY: 30, Zoom: 1}
	anchor := Point{X: 400, Y: 300}

	factors := []float64{ZoomStep, 1 / ZoomStep, 2.0, 0.5}
	for _, f := range factors {
		before := v.ScreenToWorld(anchor)
		next := v.ZoomAt(f, anchor)
		after := next.ScreenToWorld(anchor)
		if !almostEqual(before, after) {
			t.Errorf("factor %.2f: anchor world moved %+v -> %+v", f, before, after)
		}
	}
}

// TestZoomClamp 缩放因子限制在 [MinZoom, MaxZoom]
func TestZoomClamp(t *testing.T) {
	v := New()
	for i := 0; i < 50; i++ {
		v = v.ZoomIn()
	}
	if v.Zoom != MaxZoom {
		t.Errorf("zoom should clamp at %v, got %v", MaxZoom, v.Zoom)
	}
	for i := 0; i < 50; i++ {
		v = v.ZoomOut()
	}
	if v.Zoom != MinZoom {
		t.Errorf("zoom should clamp at %v, got %v", MinZoom, v.Zoom)
	}

	// 已到上限时继续锚点缩放不改变 zoom，但也不平移
	at := v.ZoomAt(0.5, Point{X: 100, Y: 100})
	if at.Zoom != MinZoom {
		t.Errorf("ZoomAt should clamp, got %v", at.Zoom)
	}
}

// TestScrollDirection 普通滚轮沿相反方向平移
func TestScrollDirection(t *testing.T) {
	v := New().Scroll(10, -20)
	if v.PanX != -10 || v.PanY != 20 {
		t.Errorf("unexpected pan after scroll: %+v", v)
	}
}

// TestReset 重置回到单位视口
func TestReset(t *testing.T) {
	v := Viewport{PanX: 99, PanY: -12, Zoom: 2.2}
	if got := v.Reset(); got != New() {
		t.Errorf("reset gave %+v", got)
	}
}
