// Package core contains the canonical identity domain contracts, entities,
// configuration, and error taxonomy. The lifecycle packages (token, apikey,
// resolver, account) depend on this package; core must not depend on
// cipher-, store- or transport-specific adapters.
package core
