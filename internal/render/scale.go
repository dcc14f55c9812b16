package render

import (
	"math"

	"celebria/internal/design"
	"celebria/internal/live"
)

// 逻辑页尺寸。
const (
	PortraitWidth   = 360
	PortraitHeight  = 640
	LandscapeWidth  = 640
	LandscapeHeight = 360
)

// MinScale 防止退化的容器产生零或负的缩放。
const MinScale = 1e-3

// Unbounded 表示容器不限高，缩放只看宽度。
const Unbounded = 0

// Scale 是把逻辑页放进容器的统一缩放系数。
type Scale struct {
	Scale         float64
	LogicalWidth  float64
	LogicalHeight float64
}

// LogicalSize 返回页面方向对应的坐标空间。
func LogicalSize(o design.Orientation) (w, h float64) {
	if o == design.Landscape {
		return LandscapeWidth, LandscapeHeight
	}
	return PortraitWidth, PortraitHeight
}

// ComputeScale 把页面完整放入 containerW x containerH，不裁切。
// containerH <= 0 视为不限高。
func ComputeScale(o design.Orientation, containerW, containerH float64) Scale {
	lw, lh := LogicalSize(o)
	s := containerW / lw
	if containerH > 0 {
		s = math.Min(s, containerH/lh)
	}
	if math.IsNaN(s) || s < MinScale {
		s = MinScale
	}
	return Scale{Scale: s, LogicalWidth: lw, LogicalHeight: lh}
}

// OuterSize 是缩放后页面在容器中占用的盒子。
func (s Scale) OuterSize() (w, h float64) {
	return s.LogicalWidth * s.Scale, s.LogicalHeight * s.Scale
}

// WatchScale 在每次容器测量后重新计算缩放。
// fn 运行期间到达的测量合并为最新一次。
func WatchScale(o design.Orientation, fn func(Scale)) *live.ResizeTracker {
	return live.WatchResize(func(size live.Size) {
		fn(ComputeScale(o, size.Width, size.Height))
	})
}
