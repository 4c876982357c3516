package mongodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/goodbye-jack/go-tenancy/tenant"
)

func TestTenantStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("load found", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "alpha"},
			{Key: "plan", Value: "premium"},
			{Key: "features", Value: bson.A{"reports", "sso"}},
		}))
		cfg, ok, err := NewTenantStore(mt.Coll).LoadTenant(context.Background(), "alpha")
		require.NoError(mt, err)
		require.True(mt, ok)
		assert.Equal(mt, "premium", cfg.Plan)
		assert.Equal(mt, []string{"reports", "sso"}, cfg.Features)
	})

	mt.Run("load absent", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, ok, err := NewTenantStore(mt.Coll).LoadTenant(context.Background(), "gamma")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("load error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "boom"}))
		_, _, err := NewTenantStore(mt.Coll).LoadTenant(context.Background(), "alpha")
		assert.Error(mt, err)
	})

	mt.Run("list", func(mt *mtest.T) {
		ns := mt.DB.Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "alpha"}},
			bson.D{{Key: "_id", Value: "beta"}},
		))
		ids, err := NewTenantStore(mt.Coll).ListTenantIDs(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, []string{"alpha", "beta"}, ids)
	})

	mt.Run("save and delete", func(mt *mtest.T) {
		s := NewTenantStore(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(mt, s.Save(context.Background(), "alpha", tenant.Config{Plan: "premium"}))
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		require.NoError(mt, s.Delete(context.Background(), "alpha"))
	})
}

func TestParseDBNameFromDSN(t *testing.T) {
	name, err := parseDBNameFromDSN("mongodb://127.0.0.1:27017/tenancy?ssl=false")
	require.NoError(t, err)
	assert.Equal(t, "tenancy", name)

	_, err = parseDBNameFromDSN("mongodb://127.0.0.1:27017")
	assert.Error(t, err)
}

func TestDocRoundTripKeepsDefaults(t *testing.T) {
	doc := docOf("beta", tenant.Config{Name: "Beta"})
	assert.Equal(t, "basic", doc.Plan)
	assert.Equal(t, "Beta", doc.config().Name)
}
