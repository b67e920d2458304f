// Package elementstest provides an in-memory element catalog for tests.
package elementstest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/mllabeler/internal/elements"
	"github.com/matthewbaird/mllabeler/internal/types"
)

// New opens an in-memory SQLite catalog loaded with ds.
func New(t testing.TB, ds elements.Dataset) *elements.SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := elements.NewSQLiteStore(db)
	ctx := context.Background()
	require.NoError(t, store.CreateTables(ctx))
	require.NoError(t, store.Import(ctx, ds))
	return store
}

func box(x0, y0, z0, x1, y1, z1 float64) (types.Point3d, types.Point3d) {
	return types.Point3d{X: x0, Y: y0, Z: z0}, types.Point3d{X: x1, Y: y1, Z: z1}
}

func element(id, model, category, class, userLabel string, geometry string, lo, hi types.Point3d) elements.Attributes {
	a := elements.Attributes{
		ElementID:  id,
		ModelID:    model,
		CategoryID: category,
		ClassID:    class,
		UserLabel:  userLabel,
		Low:        lo,
		High:       hi,
	}
	if geometry != "" {
		a.Geometry = []byte(geometry)
	}
	return a
}

// Sample returns a small catalog of two models:
//
//	0x1, 0x2  walls in m1, identical geometry, 1x1x3 boxes next to each other
//	0x3       a door in m1, 1x0.2x2, far away
//	0x4       a wall in m2 like 0x1 but slightly taller (3.002)
//	0x5       a wall in m2, 1x1x3.5
//	0x6       an m1 element without geometry, never reported
func Sample() elements.Dataset {
	e1lo, e1hi := box(0, 0, 0, 1, 1, 3)
	e2lo, e2hi := box(2, 0, 0, 3, 1, 3)
	e3lo, e3hi := box(10, 10, 0, 11, 10.2, 2)
	e4lo, e4hi := box(100, 0, 0, 101, 1, 3.002)
	e5lo, e5hi := box(200, 0, 0, 201, 1, 3.5)
	e6lo, e6hi := box(0, 0, 0, 1, 1, 1)

	door := element("0x3", "m1", "c2", "k2", "Door", "bbbbbb", e3lo, e3hi)
	door.ParentID = "0x1"
	door.CodeValue = "D-100"
	door.AspectClass = "BisCore:ExternalSourceAspect"

	return elements.Dataset{
		Models: []types.GroupRecord{
			{ID: "m1", DisplayName: "Structure"},
			{ID: "m2", DisplayName: "Site"},
			{ID: "m3", DisplayName: "Empty"},
		},
		Categories: []elements.Category{
			{ID: "c1", UserLabel: "Walls", CodeValue: "W-01"},
			{ID: "c2", CodeValue: "DOORS", Description: "Door leaves"},
		},
		Classes: []types.GroupRecord{
			{ID: "k1", DisplayName: "BisCore:Wall"},
			{ID: "k2", DisplayName: "BisCore:Door"},
		},
		Elements: []elements.Attributes{
			element("0x1", "m1", "c1", "k1", "Wall A", "aaaa", e1lo, e1hi),
			element("0x2", "m1", "c1", "k1", "Wall A", "aaaa", e2lo, e2hi),
			door,
			element("0x4", "m2", "c1", "k1", "Wall A", "aaaa", e4lo, e4hi),
			element("0x5", "m2", "c1", "k1", "Wall B", "aaaaaaaa", e5lo, e5hi),
			element("0x6", "m1", "c1", "k1", "", "", e6lo, e6hi),
		},
	}
}
