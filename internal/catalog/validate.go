package catalog

import (
	"fmt"
	"strings"
)

// Catalog configuration error codes.
const (
	ErrCodeEmptyCatalog     = "EMPTY_CATALOG"      // no services registered
	ErrCodeUnnamedService   = "UNNAMED_SERVICE"    // service missing a name
	ErrCodeDuplicateService = "DUPLICATE_SERVICE"  // service name registered twice
	ErrCodeNoActions        = "NO_ACTIONS"         // service has neither actions nor subs
	ErrCodeUnnamedAction    = "UNNAMED_ACTION"     // action missing a name
	ErrCodeDuplicateAction  = "DUPLICATE_ACTION"   // action name registered twice in a service
	ErrCodeMissingHandler   = "MISSING_HANDLER"    // action has no handler
	ErrCodeBadSchema        = "BAD_SCHEMA"         // validation descriptor does not compile
	ErrCodeSubsWithoutStore = "SUBS_WITHOUT_STORE" // subs declared but no store bound
	ErrCodeUnnamedSub       = "UNNAMED_SUB"        // sub missing a name
)

// ConfigError reports one catalog configuration violation. Configuration
// errors are fatal: they surface at assembly time and are never converted
// into per-request failures.
type ConfigError struct {
	Code    string
	Target  string // "service", "service.action", ...
	Message string
}

func (e ConfigError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Target, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// AssemblyError aggregates every violation found during assembly. All
// violations are collected before failing so a broken deployment reports
// its full extent at once.
type AssemblyError struct {
	Errors []ConfigError
}

func (e *AssemblyError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		msgs[i] = ce.Error()
	}
	return fmt.Sprintf("catalog assembly failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(msgs, "\n  "))
}

// validateServices checks structural rules before any expansion happens.
// Returns all errors found (does not fail fast).
func validateServices(services []*Service, hasStore bool) []ConfigError {
	var errs []ConfigError

	if len(services) == 0 {
		errs = append(errs, ConfigError{
			Code:    ErrCodeEmptyCatalog,
			Message: "at least one service is required",
		})
		return errs
	}

	seenServices := make(map[string]bool)
	for i, svc := range services {
		if svc == nil || strings.TrimSpace(svc.Name) == "" {
			errs = append(errs, ConfigError{
				Code:    ErrCodeUnnamedService,
				Target:  fmt.Sprintf("services[%d]", i),
				Message: "service name is required",
			})
			continue
		}
		if seenServices[svc.Name] {
			errs = append(errs, ConfigError{
				Code:    ErrCodeDuplicateService,
				Target:  svc.Name,
				Message: "service name registered twice",
			})
		}
		seenServices[svc.Name] = true

		if len(svc.Actions) == 0 && len(svc.Subs) == 0 {
			errs = append(errs, ConfigError{
				Code:    ErrCodeNoActions,
				Target:  svc.Name,
				Message: "service declares neither actions nor subs",
			})
		}

		if len(svc.Subs) > 0 && !hasStore {
			errs = append(errs, ConfigError{
				Code:    ErrCodeSubsWithoutStore,
				Target:  svc.Name,
				Message: "table-backed subs require a record store",
			})
		}

		seenActions := make(map[string]bool)
		for j, a := range svc.Actions {
			if a == nil || strings.TrimSpace(a.Name) == "" {
				errs = append(errs, ConfigError{
					Code:    ErrCodeUnnamedAction,
					Target:  fmt.Sprintf("%s.actions[%d]", svc.Name, j),
					Message: "action name is required",
				})
				continue
			}
			if seenActions[a.Name] {
				errs = append(errs, ConfigError{
					Code:    ErrCodeDuplicateAction,
					Target:  svc.Name + "." + a.Name,
					Message: "action name registered twice",
				})
			}
			seenActions[a.Name] = true

			if a.Handler == nil {
				errs = append(errs, ConfigError{
					Code:    ErrCodeMissingHandler,
					Target:  svc.Name + "." + a.Name,
					Message: "action has no handler",
				})
			}
		}

		for j, sub := range svc.Subs {
			if strings.TrimSpace(sub.Name) == "" {
				errs = append(errs, ConfigError{
					Code:    ErrCodeUnnamedSub,
					Target:  fmt.Sprintf("%s.subs[%d]", svc.Name, j),
					Message: "sub name is required",
				})
			}
		}
	}

	return errs
}
