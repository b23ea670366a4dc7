package handlers

import (
	"net/http"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/usecases/commands"
	"github.com/architeacher/nocoflo/internal/usecases/queries"
)

type grantPermissionRequest struct {
	Level string `json:"level"`
}

func (h *Handler) ListTableUsers(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	users, err := h.app.Queries.ListTableUsers.Execute(r.Context(), queries.ListTableUsersQuery{
		Actor:   actor(r),
		TableID: tableID,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, users)
}

func (h *Handler) GetUserPermissions(w http.ResponseWriter, r *http.Request) {
	tableID, userID, ok := h.permissionParams(w, r)
	if !ok {
		return
	}

	permission, err := h.app.Queries.GetUserPermissions.Execute(r.Context(), queries.GetUserPermissionsQuery{
		Actor:   actor(r),
		TableID: tableID,
		UserID:  userID,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, permission)
}

func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	tableID, userID, ok := h.permissionParams(w, r)
	if !ok {
		return
	}

	var req grantPermissionRequest
	if !h.readBody(w, r, &req) {
		return
	}

	level, err := model.ParseLevel(req.Level)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	_, err = h.app.Commands.GrantPermission.Handle(r.Context(), commands.GrantPermissionCommand{
		Actor:   actor(r),
		TableID: tableID,
		UserID:  userID,
		Level:   level,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RevokePermission(w http.ResponseWriter, r *http.Request) {
	tableID, userID, ok := h.permissionParams(w, r)
	if !ok {
		return
	}

	_, err := h.app.Commands.RevokePermission.Handle(r.Context(), commands.RevokePermissionCommand{
		Actor:   actor(r),
		TableID: tableID,
		UserID:  userID,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) permissionParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return 0, 0, false
	}

	userID, ok := h.idParam(w, r, "userID")
	if !ok {
		return 0, 0, false
	}

	return tableID, userID, true
}
