// Package urls provides centralized constants for all documentation URLs used
// throughout the application.
//
// All documentation URLs are defined here as exported constants so they can be
// updated in a single location before release.
//
// Usage:
//
//	import "github.com/muurk/esptrace/internal/urls"
//
//	fmt.Printf("See: %s\n", urls.BuildConfigurations)
package urls
