package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nile-squad/nile/internal/result"
	"github.com/nile-squad/nile/internal/schema"
	"github.com/nile-squad/nile/internal/store"
)

// Payload keys never persisted into record data.
var reservedPayloadKeys = map[string]bool{
	"auth":           true,
	"userId":         true,
	"organizationId": true,
}

// expandSub builds the standalone service generated for a table-backed sub.
// All five CRUD actions are protected by default; the executor merges the
// resolved identity into their payloads before validation.
func expandSub(parent *Service, sub Sub, st *store.Store) (*Service, []ConfigError) {
	table := sub.Table
	if table == "" {
		table = sub.Name
	}
	idName := sub.IDName
	if idName == "" {
		idName = "id"
	}

	idSchemaSrc := fmt.Sprintf("{ %s: string }", idName)

	svc := &Service{
		Name:        sub.Name,
		Description: sub.Description,
		Meta:        parent.Meta,
		actions:     make(map[string]*Action),
	}

	var errs []ConfigError
	compile := func(action, src string) *schema.Schema {
		if src == "" {
			return nil
		}
		compiled, err := schema.Compile(sub.Name+"."+action, src)
		if err != nil {
			errs = append(errs, ConfigError{
				Code:    ErrCodeBadSchema,
				Target:  sub.Name + "." + action,
				Message: err.Error(),
			})
			return nil
		}
		return compiled
	}

	idSchema := compile("getOne", idSchemaSrc)

	actions := []*Action{
		{
			Name:        "create",
			Description: fmt.Sprintf("Create a %s record", sub.Name),
			Handler:     createHandler(st, table, idName),
			compiled:    compile("create", sub.Schema),
		},
		{
			Name:        "getOne",
			Description: fmt.Sprintf("Fetch one %s record by %s", sub.Name, idName),
			Handler:     getOneHandler(st, table, idName),
			compiled:    idSchema,
		},
		{
			Name:        "getAll",
			Description: fmt.Sprintf("List %s records for the caller's organization", sub.Name),
			Handler:     getAllHandler(st, table, idName),
		},
		{
			Name:        "update",
			Description: fmt.Sprintf("Update a %s record", sub.Name),
			Handler:     updateHandler(st, table, idName),
			compiled:    idSchema,
		},
		{
			Name:        "delete",
			Description: fmt.Sprintf("Delete a %s record", sub.Name),
			Handler:     deleteHandler(st, table, idName),
			compiled:    idSchema,
		},
	}
	if len(errs) > 0 {
		return nil, errs
	}

	for _, a := range actions {
		a.generated = true
		a.Meta = parent.Meta
		svc.actions[a.Name] = a
		svc.order = append(svc.order, a.Name)
	}
	return svc, nil
}

// payloadMap coerces a handler payload to a field map. Generated handlers
// are always called with a map payload (the executor validates first), but
// hooks may hand them arbitrary values.
func payloadMap(payload any) (map[string]any, bool) {
	if payload == nil {
		return map[string]any{}, true
	}
	m, ok := payload.(map[string]any)
	return m, ok
}

// recordID reads the id field from a payload.
func recordID(payload map[string]any, idName string) string {
	id, _ := payload[idName].(string)
	return id
}

func createHandler(st *store.Store, table, idName string) Handler {
	return func(ctx context.Context, payload any, nc *Context) result.SafeResult {
		fields, ok := payloadMap(payload)
		if !ok {
			return result.Err("create expects an object payload", result.ErrIDExecutionError)
		}

		id := recordID(fields, idName)
		if id == "" {
			id = uuid.NewString()
		}

		data := make(map[string]any, len(fields))
		for k, v := range fields {
			if k == idName || reservedPayloadKeys[k] {
				continue
			}
			data[k] = v
		}

		rec := store.Record{Table: table, ID: id, Data: data}
		if nc != nil {
			rec.UserID = nc.Identity.UserID
			rec.OrganizationID = nc.Identity.OrganizationID
		}
		if err := st.CreateRecord(ctx, rec); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return result.Errf(result.ErrIDExecutionError, "%s %q already exists", table, id)
			}
			return result.Errf(result.ErrIDExecutionError, "create failed: %v", err)
		}
		return result.Ok("created", rec.Fields(idName))
	}
}

func getOneHandler(st *store.Store, table, idName string) Handler {
	return func(ctx context.Context, payload any, nc *Context) result.SafeResult {
		fields, ok := payloadMap(payload)
		if !ok {
			return result.Err("getOne expects an object payload", result.ErrIDExecutionError)
		}

		rec, err := st.GetRecord(ctx, table, recordID(fields, idName))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return result.Errf(result.ErrIDExecutionError, "%s %q not found", table, recordID(fields, idName))
			}
			return result.Errf(result.ErrIDExecutionError, "lookup failed: %v", err)
		}
		return result.Ok("found", rec.Fields(idName))
	}
}

func getAllHandler(st *store.Store, table, idName string) Handler {
	return func(ctx context.Context, payload any, nc *Context) result.SafeResult {
		orgID := ""
		if nc != nil {
			orgID = nc.Identity.OrganizationID
		}

		recs, err := st.ListRecords(ctx, table, orgID)
		if err != nil {
			return result.Errf(result.ErrIDExecutionError, "list failed: %v", err)
		}

		items := make([]map[string]any, len(recs))
		for i, rec := range recs {
			items[i] = rec.Fields(idName)
		}
		return result.Ok("found", items)
	}
}

func updateHandler(st *store.Store, table, idName string) Handler {
	return func(ctx context.Context, payload any, nc *Context) result.SafeResult {
		fields, ok := payloadMap(payload)
		if !ok {
			return result.Err("update expects an object payload", result.ErrIDExecutionError)
		}

		id := recordID(fields, idName)
		changes := make(map[string]any, len(fields))
		for k, v := range fields {
			if k == idName || reservedPayloadKeys[k] {
				continue
			}
			changes[k] = v
		}

		rec, err := st.UpdateRecord(ctx, table, id, changes)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return result.Errf(result.ErrIDExecutionError, "%s %q not found", table, id)
			}
			return result.Errf(result.ErrIDExecutionError, "update failed: %v", err)
		}
		return result.Ok("updated", rec.Fields(idName))
	}
}

func deleteHandler(st *store.Store, table, idName string) Handler {
	return func(ctx context.Context, payload any, nc *Context) result.SafeResult {
		fields, ok := payloadMap(payload)
		if !ok {
			return result.Err("delete expects an object payload", result.ErrIDExecutionError)
		}

		id := recordID(fields, idName)
		if err := st.DeleteRecord(ctx, table, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return result.Errf(result.ErrIDExecutionError, "%s %q not found", table, id)
			}
			return result.Errf(result.ErrIDExecutionError, "delete failed: %v", err)
		}
		return result.Ok("deleted", map[string]any{idName: id})
	}
}
