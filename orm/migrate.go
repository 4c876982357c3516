package orm

import (
	"context"
	"time"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/metrics"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrationFunc 在租户会话的事务里执行，ctx 已绑定该租户
type MigrationFunc func(ctx context.Context, tx *gorm.DB) error

type MigrationResult struct {
	TenantID string
	Elapsed  time.Duration
	Err      error
}

type MigrationReport []MigrationResult

func (r MigrationReport) Failed() []MigrationResult {
	var failed []MigrationResult
	for _, res := range r {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// AutoMigrateModels 最常见的迁移：对租户会话执行 AutoMigrate
func AutoMigrateModels(models ...interface{}) MigrationFunc {
	return func(_ context.Context, tx *gorm.DB) error {
		return tx.AutoMigrate(models...)
	}
}

// SQLStatements 依次执行原生SQL
func SQLStatements(statements ...string) MigrationFunc {
	return func(_ context.Context, tx *gorm.DB) error {
		for _, s := range statements {
			if err := tx.Exec(s).Error; err != nil {
				return err
			}
		}
		return nil
	}
}

// Migrate 对单个租户执行迁移
func (r *Router) Migrate(ctx context.Context, id string, fn MigrationFunc) error {
	return tenant.As(ctx, id, func(ctx context.Context) error {
		sess, err := r.Session(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()
		return sess.Transaction(func(tx *gorm.DB) error {
			return fn(ctx, tx)
		})
	})
}

// MigrateAll 对目录里的所有租户逐个迁移；某个租户失败不影响其余租户，最后汇总返回
func (r *Router) MigrateAll(ctx context.Context, dir *tenant.Directory, fn MigrationFunc) (MigrationReport, error) {
	ids, err := dir.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	report := make(MigrationReport, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		start := time.Now()
		err := r.Migrate(ctx, id, fn)
		res := MigrationResult{TenantID: id, Elapsed: time.Since(start), Err: err}
		report = append(report, res)

		entry := log.WithFields(logrus.Fields{"tenant_id": id, "elapsed": res.Elapsed.String()})
		if err != nil {
			metrics.Migrations.WithLabelValues("failed").Inc()
			entry.Errorf("tenant migration failed: %v", err)
			continue
		}
		metrics.Migrations.WithLabelValues("ok").Inc()
		entry.Info("tenant migrated")
	}
	if failed := report.Failed(); len(failed) > 0 {
		return report, errors.Errorf("migration failed for %d of %d tenant(s), first %s: %v",
			len(failed), len(report), failed[0].TenantID, failed[0].Err)
	}
	return report, nil
}
