package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nile-squad/nile/internal/auth"
	"github.com/nile-squad/nile/internal/store"
)

// subCatalog assembles a catalog with one table-backed sub over a temp store.
func subCatalog(t *testing.T, sub Sub) *Catalog {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "subs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cat, err := Assemble([]*Service{
		{
			Name: "app",
			Meta: map[string]any{"team": "core"},
			Subs: []Sub{sub},
		},
	}, st)
	require.NoError(t, err)
	return cat
}

// callerContext builds a per-call context with a resolved identity.
func callerContext(userID, orgID string) *Context {
	nc := NewContext("req-test")
	nc.Identity = auth.Identity{UserID: userID, OrganizationID: orgID}
	nc.Authenticated = true
	return nc
}

func TestExpandSub_GeneratesCRUDActions(t *testing.T) {
	cat := subCatalog(t, Sub{Name: "users"})

	svc, ok := cat.Service("users")
	require.True(t, ok, "sub becomes a standalone service")
	assert.Equal(t, []string{"create", "getOne", "getAll", "update", "delete"}, svc.ActionNames(""))

	for _, name := range svc.ActionNames("") {
		a, _ := svc.Action(name)
		assert.True(t, a.IsProtected(), "%s must be protected by default", name)
		assert.True(t, a.IsGenerated())
		assert.Equal(t, "core", a.Meta["team"], "parent meta flows into generated actions")
	}

	// getOne carries the id schema.
	getOne, _ := svc.Action("getOne")
	require.NotNil(t, getOne.Schema())
	assert.NotEmpty(t, getOne.Schema().Validate(map[string]any{}))
}

func TestSubCRUD_RoundTrip(t *testing.T) {
	cat := subCatalog(t, Sub{Name: "users"})
	svc, _ := cat.Service("users")
	ctx := context.Background()
	nc := callerContext("u1", "o1")

	create, _ := svc.Action("create")
	res := create.Handler(ctx, map[string]any{"id": "u1", "name": "Ada", "userId": "u1"}, nc)
	require.True(t, res.IsOk, res.Message)

	created, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u1", created["id"])
	assert.Equal(t, "Ada", created["name"])
	assert.NotContains(t, created, "userId", "identity fields are not persisted as data")

	getOne, _ := svc.Action("getOne")
	res = getOne.Handler(ctx, map[string]any{"id": "u1"}, nc)
	require.True(t, res.IsOk, res.Message)
	fetched := res.Data.(map[string]any)
	assert.Equal(t, "u1", fetched["id"])
	assert.Equal(t, "Ada", fetched["name"])

	update, _ := svc.Action("update")
	res = update.Handler(ctx, map[string]any{"id": "u1", "name": "Grace"}, nc)
	require.True(t, res.IsOk, res.Message)
	assert.Equal(t, "Grace", res.Data.(map[string]any)["name"])

	getAll, _ := svc.Action("getAll")
	res = getAll.Handler(ctx, map[string]any{}, nc)
	require.True(t, res.IsOk)
	items := res.Data.([]map[string]any)
	require.Len(t, items, 1)

	del, _ := svc.Action("delete")
	res = del.Handler(ctx, map[string]any{"id": "u1"}, nc)
	require.True(t, res.IsOk)

	res = getOne.Handler(ctx, map[string]any{"id": "u1"}, nc)
	require.True(t, res.IsError)
	assert.Contains(t, res.Message, "not found")
}

func TestSubCreate_MintsIDWhenAbsent(t *testing.T) {
	cat := subCatalog(t, Sub{Name: "orders"})
	svc, _ := cat.Service("orders")

	create, _ := svc.Action("create")
	res := create.Handler(context.Background(), map[string]any{"total": 5}, callerContext("u1", "o1"))
	require.True(t, res.IsOk, res.Message)
	assert.NotEmpty(t, res.Data.(map[string]any)["id"])
}

func TestSubGetAll_ScopedToCallerOrganization(t *testing.T) {
	cat := subCatalog(t, Sub{Name: "notes"})
	svc, _ := cat.Service("notes")
	ctx := context.Background()

	create, _ := svc.Action("create")
	require.True(t, create.Handler(ctx, map[string]any{"id": "n1"}, callerContext("u1", "o1")).IsOk)
	require.True(t, create.Handler(ctx, map[string]any{"id": "n2"}, callerContext("u2", "o2")).IsOk)

	getAll, _ := svc.Action("getAll")
	res := getAll.Handler(ctx, map[string]any{}, callerContext("u1", "o1"))
	require.True(t, res.IsOk)

	items := res.Data.([]map[string]any)
	require.Len(t, items, 1)
	assert.Equal(t, "n1", items[0]["id"])
}

func TestSub_CustomIDNameAndTable(t *testing.T) {
	cat := subCatalog(t, Sub{Name: "members", Table: "org_members", IDName: "memberId"})
	svc, _ := cat.Service("members")
	ctx := context.Background()
	nc := callerContext("u1", "o1")

	create, _ := svc.Action("create")
	res := create.Handler(ctx, map[string]any{"memberId": "m1", "role": "admin"}, nc)
	require.True(t, res.IsOk, res.Message)

	getOne, _ := svc.Action("getOne")
	res = getOne.Handler(ctx, map[string]any{"memberId": "m1"}, nc)
	require.True(t, res.IsOk, res.Message)
	assert.Equal(t, "m1", res.Data.(map[string]any)["memberId"])
}

func TestSub_CreateSchemaValidatesAtAssembly(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "bad.db"))
	require.NoError(t, err)
	defer st.Close()

	_, err = Assemble([]*Service{
		{Name: "app", Subs: []Sub{{Name: "users", Schema: "{ broken"}}},
	}, st)
	require.Error(t, err)

	var ae *AssemblyError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrCodeBadSchema, ae.Errors[0].Code)
}

func TestSub_DuplicateCreateRejected(t *testing.T) {
	cat := subCatalog(t, Sub{Name: "users"})
	svc, _ := cat.Service("users")
	ctx := context.Background()
	nc := callerContext("u1", "o1")

	create, _ := svc.Action("create")
	require.True(t, create.Handler(ctx, map[string]any{"id": "u1"}, nc).IsOk)

	res := create.Handler(ctx, map[string]any{"id": "u1"}, nc)
	require.True(t, res.IsError)
	assert.Contains(t, res.Message, "already exists")
}
