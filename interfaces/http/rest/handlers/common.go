package handlers

import (
	"net/http"

	"flowboard/domain/core/valueobjects"
	"flowboard/pkg/auth"
	pkgerrors "flowboard/pkg/errors"

	"github.com/go-chi/chi/v5"
)

// currentUser returns the authenticated user id or writes a 401
func currentUser(w http.ResponseWriter, r *http.Request, errs *pkgerrors.ErrorHandler) (string, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Unauthorized"))
		return "", false
	}
	return user.UserID, true
}

func boardIDParam(r *http.Request) (valueobjects.BoardID, error) {
	return valueobjects.ParseBoardID(chi.URLParam(r, "boardID"))
}

func blockIDParam(r *http.Request) (valueobjects.NodeID, error) {
	return valueobjects.NewNodeIDFromString(chi.URLParam(r, "blockID"))
}
