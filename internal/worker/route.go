// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package worker is the edge server: it classifies every incoming request
// and hands it to the share-target interceptor, the shared-payload cache,
// the verification endpoint, the sync trigger, the shell cache or the
// origin passthrough.
package worker

import (
	"net/http"
	"strings"

	"github.com/channi23/OrangeLens/internal/sharedcache"
	"github.com/channi23/OrangeLens/internal/sharetarget"
)

// Edge endpoints.
const (
	VerifyPath = "/api/v1/verify"
	SyncPrefix = "/sync/"
)

// Route names the branch a request is served by.
type Route int

const (
	RoutePassthrough Route = iota
	RouteShareTarget
	RouteShared
	RouteVerify
	RouteSync
	RouteCache
)

var routeNames = map[Route]string{
	RoutePassthrough: "passthrough",
	RouteShareTarget: "share-target",
	RouteShared:      "shared",
	RouteVerify:      "verify",
	RouteSync:        "sync",
	RouteCache:       "cache",
}

func (r Route) String() string {
	if s, ok := routeNames[r]; ok {
		return s
	}
	return "unknown"
}

// Classify picks the route for r from its method and path alone.
func Classify(r *http.Request) Route {
	p := r.URL.Path
	read := r.Method == http.MethodGet || r.Method == http.MethodHead

	switch {
	case r.Method == http.MethodPost && p == sharetarget.Path:
		return RouteShareTarget
	case read && sharedcache.IsKey(p):
		return RouteShared
	case r.Method == http.MethodPost && p == VerifyPath:
		return RouteVerify
	case r.Method == http.MethodPost && isSyncPath(p):
		return RouteSync
	case read:
		return RouteCache
	default:
		return RoutePassthrough
	}
}

func isSyncPath(p string) bool {
	tag, ok := strings.CutPrefix(p, SyncPrefix)
	return ok && tag != "" && !strings.Contains(tag, "/")
}
