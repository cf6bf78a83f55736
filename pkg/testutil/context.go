package testutil

import (
	"net/http"

	id "stride/pkg/domain"
	"stride/pkg/requestcontext"
)

// WithLogin marks the request as coming from a logged-in athlete, as the
// session middleware would.
func WithLogin(req *http.Request, athleteID id.AthleteID, sessionID id.SessionID) *http.Request {
	ctx := requestcontext.WithAthleteID(req.Context(), athleteID)
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	return req.WithContext(ctx)
}
