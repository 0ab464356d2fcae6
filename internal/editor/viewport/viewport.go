// Package viewport 维护画布的平移/缩放状态和世界坐标 ↔ 屏幕坐标的换算。
// 约定：world = (screen - pan) / zoom，screen = world*zoom + pan。
package viewport

const (
	MinZoom = 0.3
	MaxZoom = 2.5

	// ZoomStep 每个滚轮刻度的缩放倍率
	ZoomStep = 1.1
)

// Point 二维坐标，世界系或屏幕系由使用处决定
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport 平移偏移 + 缩放因子
type Viewport struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// New 返回单位视口
func New() Viewport {
	return Viewport{Zoom: 1}
}

// ScreenToWorld 屏幕坐标换算为世界坐标
func (v Viewport) ScreenToWorld(s Point) Point {
	return Point{
		X: (s.X - v.PanX) / v.Zoom,
		Y: (s.Y - v.PanY) / v.Zoom,
	}
}

// WorldToScreen 世界坐标换算为屏幕坐标
func (v Viewport) WorldToScreen(w Point) Point {
	return Point{
		X: w.X*v.Zoom + v.PanX,
		Y: w.Y*v.Zoom + v.PanY,
	}
}

// Pan 按屏幕像素增量平移
func (v Viewport) Pan(dx, dy float64) Viewport {
	v.PanX += dx
	v.PanY += dy
	return v
}

// Scroll 普通滚轮：按 (-dx, -dy) 平移
func (v Viewport) Scroll(dx, dy float64) Viewport {
	return v.Pan(-dx, -dy)
}

// ZoomAt 以屏幕点 anchor 为锚进行缩放：缩放前后 anchor 下的世界点保持不动。
// 先算锚点的世界坐标，换新 zoom，再反解 pan。
func (v Viewport) ZoomAt(factor float64, anchor Point) Viewport {
	world := v.ScreenToWorld(anchor)
	v.Zoom = clampZoom(v.Zoom * factor)
	v.PanX = anchor.X - world.X*v.Zoom
	v.PanY = anchor.Y - world.Y*v.Zoom
	return v
}

// ZoomIn 显式放大一档（无锚点）
func (v Viewport) ZoomIn() Viewport {
	v.Zoom = clampZoom(v.Zoom * ZoomStep)
	return v
}

// ZoomOut 显式缩小一档
func (v Viewport) ZoomOut() Viewport {
	v.Zoom = clampZoom(v.Zoom / ZoomStep)
	return v
}

// Reset 回到单位视口
func (v Viewport) Reset() Viewport {
	return New()
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
