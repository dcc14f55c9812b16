// Package errcode 定义 worker 通知中的 error_code 取值。
package errcode

// 0 表示成功；4xxx 为产物已生成但需提示的情况；5xxx 为任务失败。
const (
	OK = 0
	// ResourceMissing: 设计为空，产物使用了占位页。
	ResourceMissing = 4004
	// InvalidDesign: 存储的设计无法解析，任务不会重试。
	InvalidDesign = 4022
	SystemError   = 5000
)
