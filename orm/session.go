package orm

import (
	"sync"

	"gorm.io/gorm"
)

// Session 绑定单个租户的gorm会话，方法集沿用通用Orm封装
type Session struct {
	tenantID string
	db       *gorm.DB

	release  func() error
	once     sync.Once
	closeErr error
}

func newSession(tenantID string, db *gorm.DB, release func() error) *Session {
	return &Session{tenantID: tenantID, db: db, release: release}
}

// DB 底层gorm会话，已带上请求context和租户信息
func (s *Session) DB() *gorm.DB {
	return s.db
}

func (s *Session) TenantID() string {
	return s.tenantID
}

// Close 归还会话占用的连接；可重复调用
func (s *Session) Close() error {
	s.once.Do(func() {
		if s.release != nil {
			s.closeErr = s.release()
		}
	})
	return s.closeErr
}

func (s *Session) AutoMigrate(models ...interface{}) error {
	return s.db.AutoMigrate(models...)
}

func (s *Session) Transaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}

func (s *Session) Create(ptr interface{}) error {
	return s.db.Create(ptr).Error
}

func (s *Session) First(res interface{}, filters ...interface{}) error {
	return s.db.First(res, filters...).Error
}

func (s *Session) FindAll(res interface{}, filters ...interface{}) error {
	if len(filters) > 0 {
		return s.db.Where(filters[0], filters[1:]...).Find(res).Error
	}
	return s.db.Find(res).Error
}

func (s *Session) Page(res interface{}, page, pageSize int, order string, filters ...interface{}) error {
	if page < 1 {
		page = 1
	}
	db := s.db
	if order != "" {
		db = db.Order(order)
	}
	if len(filters) > 0 {
		db = db.Where(filters[0], filters[1:]...)
	}
	return db.Limit(pageSize).Offset((page - 1) * pageSize).Find(res).Error
}

func (s *Session) Count(model interface{}, total *int64, filters ...interface{}) error {
	db := s.db.Model(model)
	if len(filters) > 0 {
		return db.Where(filters[0], filters[1:]...).Count(total).Error
	}
	return db.Count(total).Error
}

// Update 按主键保存全部字段
func (s *Session) Update(ptr interface{}) error {
	return s.db.Save(ptr).Error
}

func (s *Session) Delete(ptr interface{}, filters ...interface{}) error {
	return s.db.Delete(ptr, filters...).Error
}

func (s *Session) Exec(sql string, values ...interface{}) error {
	return s.db.Exec(sql, values...).Error
}
