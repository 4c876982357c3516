package utils

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 32

// GetStack 格式化调用栈（函数名 + 文件:行号），skip为跳过的调用方层数，runtime内部帧不输出
func GetStack(skip int) string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs) // 跳过runtime.Callers与GetStack本身
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return b.String()
}
