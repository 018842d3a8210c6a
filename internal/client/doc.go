// Package client is the HTTP client for the vmlog daemon.
//
// Every operator command other than serve goes through a Client. Errors
// returned by the daemon are decoded into *api.Error values that unwrap to
// the package sentinels, so callers can test them with errors.Is:
//
//	err := c.SetLevel(ctx, "ROOT", "DEFAULT")
//	if errors.Is(err, levels.ErrInvalidOperation) {
//		// the root logger can not be unset
//	}
//
// Feed adapts the daemon to the tail package's Source interface, which lets
// the same tail session code run locally in the daemon and remotely in the
// CLI.
package client
