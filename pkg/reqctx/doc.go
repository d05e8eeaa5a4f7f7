// Package reqctx carries request-scoped values through context.Context.
//
// HTTP middleware sets RequestMeta on every request and AuthClaims on
// authenticated ones. Services read them back through the typed getters;
// the context keys themselves are unexported.
package reqctx
