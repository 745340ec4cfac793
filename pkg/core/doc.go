// Package core provides a small, stable facade over auditkit's internal
// packages for external integrations: running audits with custom or built-in
// plugins, rendering reports and analyzing report artifacts.
//
// Example:
//
//	target, err := core.NewTarget(".")
//	if err != nil { /* handle */ }
//	rep := core.RunBuiltin(ctx, core.Config{}, core.TesterConfig{}, target, core.System{})
//	_ = core.Render(os.Stdout, rep)
package core
