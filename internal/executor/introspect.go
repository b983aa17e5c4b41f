package executor

import "github.com/nile-squad/nile/internal/catalog"

// ActionInfo is the introspection view of one action.
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Protected   bool   `json:"protected"`
}

// ServiceInfo is the introspection view of one service.
type ServiceInfo struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Actions     []ActionInfo `json:"actions"`
}

// ListServices returns the catalog view for one protocol, honoring
// per-action visibility. Services whose every action is hidden on the
// protocol are omitted.
func (e *Executor) ListServices(p catalog.Protocol) []ServiceInfo {
	var out []ServiceInfo
	for _, name := range e.catalog.ServiceNames() {
		svc, _ := e.catalog.Service(name)
		info := ServiceInfo{Name: svc.Name, Description: svc.Description}
		for _, actionName := range svc.ActionNames(p) {
			a, _ := svc.Action(actionName)
			info.Actions = append(info.Actions, ActionInfo{
				Name:        a.Name,
				Description: a.Description,
				Protected:   a.IsProtected(),
			})
		}
		if len(info.Actions) > 0 {
			out = append(out, info)
		}
	}
	return out
}

// ListActions returns the visible actions of one service, or false when
// the service does not exist.
func (e *Executor) ListActions(service string, p catalog.Protocol) ([]ActionInfo, bool) {
	svc, ok := e.catalog.Service(service)
	if !ok {
		return nil, false
	}
	var out []ActionInfo
	for _, actionName := range svc.ActionNames(p) {
		a, _ := svc.Action(actionName)
		out = append(out, ActionInfo{
			Name:        a.Name,
			Description: a.Description,
			Protected:   a.IsProtected(),
		})
	}
	return out, true
}
