/*
classify.go - Upstream error taxonomy

PURPOSE:
  The upstream logistics service reports every failure as a bare HTTP
  status, and its gateway is known to answer 403 for plain business
  rejections (duplicate ticket numbers, quota refusals) as well as for
  expired sessions. Treating every 403 as an auth failure would log the
  operator out mid-save over a duplicate ticket, so classification looks
  at the body and the endpoint before deciding.

RULE ORDER:
  1. 401 is always an auth failure
  2. 403 with business wording in the body is a business rejection
  3. 403 on an endpoint that only ever rejects for business reasons is a
     business rejection even with an empty body
  4. 403 with auth wording, or anything left over, is an auth failure
*/
package gateway

import (
	"net/http"
	"strings"
)

// Kind buckets an upstream failure by how the engine must react.
type Kind int

const (
	KindNone Kind = iota
	// KindAuth means the session is gone and every retry will fail until
	// the operator re-authenticates.
	KindAuth
	// KindBusiness means the service understood the request and refused it.
	KindBusiness
	// KindNotFound means the referenced entity is gone upstream.
	KindNotFound
	// KindTransient covers 5xx and anything worth retrying.
	KindTransient
)

// businessKeywords are fragments the legacy service puts in business
// rejection bodies. French and English both occur.
var businessKeywords = []string{
	"existe",
	"déjà",
	"deja",
	"already",
	"exists",
	"duplicate",
	"ticket",
	"bon",
	"quantite",
	"quantité",
	"depassement",
	"dépassement",
	"autorise",
	"autorisé",
}

// authKeywords mark a 403 that genuinely is about the session.
var authKeywords = []string{
	"token",
	"expired",
	"expiré",
	"jwt",
	"unauthorized",
	"session",
}

// businessEndpoints are paths whose 403s are always business rejections.
// The legacy gateway misuses the status on these routes.
var businessEndpoints = []struct {
	method string
	prefix string
}{
	{http.MethodPost, "/api/dechargement"},
	{http.MethodPut, "/api/dechargement"},
	{http.MethodPost, "/api/notifications"},
	{http.MethodPost, "/api/projet-depot"},
	{"", "/api/quantite-autorisee"},
}

// Classify maps an upstream response to a Kind. Success statuses return
// KindNone.
func Classify(method, path string, status int, body string) Kind {
	switch {
	case status < http.StatusBadRequest:
		return KindNone
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= http.StatusInternalServerError:
		return KindTransient
	}

	if status == http.StatusForbidden {
		lower := strings.ToLower(body)
		for _, kw := range authKeywords {
			if strings.Contains(lower, kw) {
				return KindAuth
			}
		}
		for _, kw := range businessKeywords {
			if strings.Contains(lower, kw) {
				return KindBusiness
			}
		}
		for _, ep := range businessEndpoints {
			if (ep.method == "" || ep.method == method) && strings.HasPrefix(path, ep.prefix) {
				return KindBusiness
			}
		}
		return KindAuth
	}

	// Remaining 4xx are explicit business rejections.
	return KindBusiness
}
