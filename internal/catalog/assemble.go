package catalog

import (
	"github.com/nile-squad/nile/internal/schema"
	"github.com/nile-squad/nile/internal/store"
)

// Catalog is the frozen {service → actions} mapping. Built once by
// Assemble; read-only thereafter.
type Catalog struct {
	services map[string]*Service
	order    []string
}

// Assemble validates, expands, and freezes the catalog:
//
//  1. structural validation (collect-all; any violation fails assembly)
//  2. subs expand into standalone services with generated CRUD actions
//  3. service-level meta/validation defaults merge into each action
//  4. validation descriptors compile to schemas
//
// The input services are not mutated; every action is copied into the
// catalog. st may be nil when no service declares subs.
func Assemble(services []*Service, st *store.Store) (*Catalog, error) {
	var errs []ConfigError

	errs = append(errs, validateServices(services, st != nil)...)
	if len(errs) > 0 {
		return nil, &AssemblyError{Errors: errs}
	}

	cat := &Catalog{services: make(map[string]*Service)}

	register := func(svc *Service) {
		cat.services[svc.Name] = svc
		cat.order = append(cat.order, svc.Name)
	}

	for _, src := range services {
		svc := &Service{
			Name:        src.Name,
			Description: src.Description,
			Meta:        src.Meta,
			Validation:  src.Validation,
			actions:     make(map[string]*Action),
		}

		for _, a := range src.Actions {
			registered, err := finalizeAction(svc, a)
			if err != nil {
				errs = append(errs, *err)
				continue
			}
			svc.actions[registered.Name] = registered
			svc.order = append(svc.order, registered.Name)
		}
		register(svc)

		// Each sub becomes its own service carrying generated CRUD
		// actions; parent meta flows down.
		for _, sub := range src.Subs {
			subSvc, subErrs := expandSub(src, sub, st)
			if len(subErrs) > 0 {
				errs = append(errs, subErrs...)
				continue
			}
			if _, exists := cat.services[subSvc.Name]; exists {
				errs = append(errs, ConfigError{
					Code:    ErrCodeDuplicateService,
					Target:  subSvc.Name,
					Message: "sub name collides with a registered service",
				})
				continue
			}
			register(subSvc)
		}
	}

	if len(errs) > 0 {
		return nil, &AssemblyError{Errors: errs}
	}
	return cat, nil
}

// finalizeAction copies an authored action into the catalog, merging
// service defaults and compiling its schema.
func finalizeAction(svc *Service, src *Action) (*Action, *ConfigError) {
	a := &Action{
		Name:           src.Name,
		Description:    src.Description,
		Handler:        src.Handler,
		Validation:     src.Validation,
		Protected:      src.Protected,
		Hooks:          src.Hooks,
		PipelineResult: src.PipelineResult,
		Meta:           mergeMeta(svc.Meta, src.Meta),
		Hidden:         src.Hidden,
		generated:      src.generated,
		compiled:       src.compiled,
	}

	if a.Validation == "" {
		a.Validation = svc.Validation
	}
	if a.Validation != "" && a.compiled == nil {
		compiled, err := schema.Compile(svc.Name+"."+a.Name, a.Validation)
		if err != nil {
			return nil, &ConfigError{
				Code:    ErrCodeBadSchema,
				Target:  svc.Name + "." + a.Name,
				Message: err.Error(),
			}
		}
		a.compiled = compiled
	}

	return a, nil
}

// mergeMeta layers action meta over service defaults. Neither input map is
// mutated.
func mergeMeta(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// Service looks up a service by exact name.
func (c *Catalog) Service(name string) (*Service, bool) {
	svc, ok := c.services[name]
	return svc, ok
}

// ServiceNames returns service names in registration order.
func (c *Catalog) ServiceNames() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// ResolveHook finds the action a hook definition names: first within the
// owning service, then across the whole catalog in registration order.
func (c *Catalog) ResolveHook(owner *Service, name string) (*Action, bool) {
	if owner != nil {
		if a, ok := owner.Action(name); ok {
			return a, true
		}
	}
	for _, svcName := range c.order {
		if a, ok := c.services[svcName].Action(name); ok {
			return a, true
		}
	}
	return nil, false
}
