package orm

import (
	"sync"
)

// ========== 全局默认实例（便捷入口，业务代码可直接注入Router） ==========
var (
	defaultMu     sync.RWMutex
	defaultRouter *Router
)

func SetDefault(r *Router) {
	defaultMu.Lock()
	defaultRouter = r
	defaultMu.Unlock()
}

// Default 未初始化时返回nil
func Default() *Router {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRouter
}
