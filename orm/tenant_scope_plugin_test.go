package orm

import (
	"context"
	"testing"

	"github.com/goodbye-jack/go-tenancy/model"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func rowLevelRouter(t *testing.T, opts ...RouterOption) *Router {
	r := newTestRouter(t, tenant.RowLevel, sqliteBase(t), opts...)
	require.NoError(t, r.Migrate(context.Background(), "alpha", AutoMigrateModels(&note{})))
	return r
}

func withSession(t *testing.T, r *Router, id string, fn func(s *Session)) {
	sess, err := r.Session(tenantCtx(id))
	require.NoError(t, err)
	defer sess.Close()
	fn(sess)
}

func TestRowLevelAssignsTenantOnCreate(t *testing.T) {
	r := rowLevelRouter(t)

	withSession(t, r, "alpha", func(s *Session) {
		n := &note{Body: "a1"}
		require.NoError(t, s.Create(n))
		assert.Equal(t, "alpha", n.TenantID)

		batch := []*note{{Body: "a2"}, {Body: "a3"}}
		require.NoError(t, s.Create(&batch))
		for _, n := range batch {
			assert.Equal(t, "alpha", n.TenantID)
		}
	})
}

func TestRowLevelScopesReads(t *testing.T) {
	r := rowLevelRouter(t)
	withSession(t, r, "alpha", func(s *Session) {
		require.NoError(t, s.Create(&[]note{{Body: "a1"}, {Body: "a2"}}))
	})
	withSession(t, r, "beta", func(s *Session) {
		require.NoError(t, s.Create(&note{Body: "b1"}))
	})

	withSession(t, r, "alpha", func(s *Session) {
		var notes []note
		require.NoError(t, s.FindAll(&notes))
		assert.Len(t, notes, 2)

		var total int64
		require.NoError(t, s.Count(&note{}, &total))
		assert.Equal(t, int64(2), total)
	})

	withSession(t, r, "beta", func(s *Session) {
		var notes []note
		// OR条件不能绕过租户条件
		require.NoError(t, s.FindAll(&notes, "body = ? OR body = ?", "a1", "b1"))
		require.Len(t, notes, 1)
		assert.Equal(t, "b1", notes[0].Body)

		var n note
		err := s.First(&n, "body = ?", "a1")
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

		require.NoError(t, s.Page(&notes, 1, 10, "id desc"))
		assert.Len(t, notes, 1)
	})
}

func TestRowLevelScopesWrites(t *testing.T) {
	r := rowLevelRouter(t)
	var alphaNote note
	withSession(t, r, "alpha", func(s *Session) {
		alphaNote = note{Body: "a1"}
		require.NoError(t, s.Create(&alphaNote))
	})

	withSession(t, r, "beta", func(s *Session) {
		res := s.DB().Delete(&note{}, alphaNote.ID)
		require.NoError(t, res.Error)
		assert.Zero(t, res.RowsAffected)

		res = s.DB().Model(&note{}).Where("id = ?", alphaNote.ID).Update("body", "hijacked")
		require.NoError(t, res.Error)
		assert.Zero(t, res.RowsAffected)

		foreign := alphaNote
		foreign.Body = "overwritten"
		err := s.Update(&foreign)
		assert.True(t, errors.Is(err, ErrCrossTenantWrite))

		err = s.Create(&note{TenantModel: model.TenantModel{TenantID: "alpha"}, Body: "smuggled"})
		assert.True(t, errors.Is(err, ErrCrossTenantWrite))
	})

	withSession(t, r, "alpha", func(s *Session) {
		var n note
		require.NoError(t, s.First(&n, alphaNote.ID))
		assert.Equal(t, "a1", n.Body)

		n.Body = "edited"
		require.NoError(t, s.Update(&n))
		require.NoError(t, s.First(&n, alphaNote.ID))
		assert.Equal(t, "edited", n.Body)

		var total int64
		require.NoError(t, s.Count(&note{}, &total))
		assert.Equal(t, int64(1), total)
	})
}

func TestRowLevelTransactionKeepsScope(t *testing.T) {
	r := rowLevelRouter(t)
	withSession(t, r, "beta", func(s *Session) {
		require.NoError(t, s.Create(&note{Body: "b1"}))
	})

	withSession(t, r, "alpha", func(s *Session) {
		err := s.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&note{Body: "a1"}).Error; err != nil {
				return err
			}
			var notes []note
			if err := tx.Find(&notes).Error; err != nil {
				return err
			}
			assert.Len(t, notes, 1)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestRowLevelEnforcementCanBeDisabled(t *testing.T) {
	r := rowLevelRouter(t, WithRowLevelEnforcement(false))
	withSession(t, r, "alpha", func(s *Session) {
		require.NoError(t, s.Create(&note{TenantModel: model.TenantModel{TenantID: "alpha"}, Body: "a1"}))
	})
	withSession(t, r, "beta", func(s *Session) {
		require.NoError(t, s.Create(&note{TenantModel: model.TenantModel{TenantID: "beta"}, Body: "b1"}))
		var total int64
		require.NoError(t, s.Count(&note{}, &total))
		assert.Equal(t, int64(2), total)
	})
}

func TestModelsWithoutTenantColumnAreUntouched(t *testing.T) {
	r := newTestRouter(t, tenant.RowLevel, sqliteBase(t))
	withSession(t, r, "alpha", func(s *Session) {
		require.NoError(t, s.AutoMigrate(&memo{}))
		require.NoError(t, s.Create(&memo{Body: "shared"}))
	})
	withSession(t, r, "beta", func(s *Session) {
		var memos []memo
		require.NoError(t, s.FindAll(&memos))
		assert.Len(t, memos, 1)
	})
}

type order struct {
	model.TenantModel
	Title string
	Items []item
}

type item struct {
	model.TenantModel
	OrderID uint
	Body    string
}

func TestRowLevelScopesPreload(t *testing.T) {
	r := newTestRouter(t, tenant.RowLevel, sqliteBase(t))
	require.NoError(t, r.Migrate(context.Background(), "alpha", AutoMigrateModels(&order{}, &item{})))

	var alphaOrder order
	withSession(t, r, "alpha", func(s *Session) {
		alphaOrder = order{Title: "a-order"}
		require.NoError(t, s.Create(&alphaOrder))
		require.NoError(t, s.Create(&item{OrderID: alphaOrder.ID, Body: "a-item"}))
	})
	withSession(t, r, "beta", func(s *Session) {
		require.NoError(t, s.Create(&item{OrderID: alphaOrder.ID, Body: "b-item"}))
	})

	withSession(t, r, "alpha", func(s *Session) {
		var orders []order
		require.NoError(t, s.DB().Preload("Items").Find(&orders).Error)
		require.Len(t, orders, 1)
		require.Len(t, orders[0].Items, 1)
		assert.Equal(t, "a-item", orders[0].Items[0].Body)
		assert.Equal(t, "alpha", orders[0].Items[0].TenantID)
	})

	withSession(t, r, "beta", func(s *Session) {
		var orders []order
		require.NoError(t, s.DB().Preload("Items").Find(&orders).Error)
		assert.Empty(t, orders)

		var items []item
		require.NoError(t, s.FindAll(&items, "order_id = ?", alphaOrder.ID))
		require.Len(t, items, 1)
		assert.Equal(t, "b-item", items[0].Body)
	})
}
