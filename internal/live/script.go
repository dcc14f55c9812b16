package live

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// YouTubeIframeAPI 是内嵌视频播放器依赖的脚本。
const YouTubeIframeAPI = "https://www.youtube.com/iframe_api"

// InjectFunc 把脚本插入宿主文档，加载完成后返回。
type InjectFunc func(ctx context.Context, src string) error

// ScriptLoader 保证每个外部脚本在一个文档里最多注入一次，
// 并发请求共享同一次注入，注入失败时后续调用可以重试。
type ScriptLoader struct {
	inject InjectFunc
	group  singleflight.Group

	mu     sync.Mutex
	loaded map[string]bool
}

func NewScriptLoader(inject InjectFunc) *ScriptLoader {
	return &ScriptLoader{inject: inject, loaded: map[string]bool{}}
}

// Load 确保 src 已加载。
func (l *ScriptLoader) Load(ctx context.Context, src string) error {
	if l.Loaded(src) {
		return nil
	}
	_, err, _ := l.group.Do(src, func() (any, error) {
		if l.Loaded(src) {
			return nil, nil
		}
		if err := l.inject(ctx, src); err != nil {
			return nil, fmt.Errorf("inject script %s: %w", src, err)
		}
		l.mu.Lock()
		l.loaded[src] = true
		l.mu.Unlock()
		return nil, nil
	})
	return err
}

func (l *ScriptLoader) Loaded(src string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded[src]
}
