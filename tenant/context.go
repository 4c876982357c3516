package tenant

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type scopeKey struct{}

// Scope 单个请求（逻辑任务）持有的当前租户槽位
type Scope struct {
	mu  sync.RWMutex
	id  string
	set bool
}

// NewScope 在ctx上挂一个新的、未设置的槽位。每个请求都应拿到自己的Scope。
func NewScope(ctx context.Context) (context.Context, *Scope) {
	s := &Scope{}
	return context.WithValue(ctx, scopeKey{}, s), s
}

func (s *Scope) Set(id string) {
	s.mu.Lock()
	s.id, s.set = id, id != ""
	s.mu.Unlock()
}

func (s *Scope) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.set
}

func (s *Scope) Reset() {
	s.Set("")
}

func scopeFrom(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// WithTenant 派生一个已绑定 id 的子ctx，父ctx的绑定不受影响
func WithTenant(ctx context.Context, id string) context.Context {
	ctx, s := NewScope(ctx)
	s.Set(id)
	return ctx
}

// Set 写入ctx上的槽位；ctx上没有槽位时返回false
func Set(ctx context.Context, id string) bool {
	s := scopeFrom(ctx)
	if s == nil {
		return false
	}
	s.Set(id)
	return true
}

func Get(ctx context.Context) (string, bool) {
	s := scopeFrom(ctx)
	if s == nil {
		return "", false
	}
	return s.Get()
}

func Require(ctx context.Context) (string, error) {
	if id, ok := Get(ctx); ok {
		return id, nil
	}
	return "", newContextError()
}

func MustRequire(ctx context.Context) string {
	id, err := Require(ctx)
	if err != nil {
		panic(err)
	}
	return id
}

// As 临时以 id 身份执行 fn。覆盖只存在于派生ctx中，fn返回或panic后调用方的绑定保持原值。
func As(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if id == "" {
		return errors.New("tenant id must not be empty")
	}
	return fn(WithTenant(ctx, id))
}
