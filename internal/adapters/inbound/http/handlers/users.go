package handlers

import (
	"fmt"
	"net/http"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/usecases/commands"
	"github.com/architeacher/nocoflo/internal/usecases/queries"
)

type (
	createUserRequest struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	updateUserRequest struct {
		Role string `json:"role"`
	}

	createInviteRequest struct {
		Email string `json:"email"`
	}

	registerRequest struct {
		Token    string `json:"token"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.app.Queries.ListUsers.Execute(r.Context(), queries.ListUsersQuery{Actor: actor(r)})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.readBody(w, r, &req) {
		return
	}

	role, err := model.ParseRole(req.Role)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	user, err := h.app.Commands.CreateUser.Handle(r.Context(), commands.CreateUserCommand{
		Actor:    actor(r),
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.Header().Set("Location", fmt.Sprintf("/%s/users/%d", apiVersion, user.ID))
	writeData(w, r, http.StatusCreated, user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r, "userID")
	if !ok {
		return
	}

	var req updateUserRequest
	if !h.readBody(w, r, &req) {
		return
	}

	role, err := model.ParseRole(req.Role)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	_, err = h.app.Commands.UpdateUserRole.Handle(r.Context(), commands.UpdateUserRoleCommand{
		Actor:  actor(r),
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r, "userID")
	if !ok {
		return
	}

	_, err := h.app.Commands.DeleteUser.Handle(r.Context(), commands.DeleteUserCommand{
		Actor:  actor(r),
		UserID: userID,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if !h.readBody(w, r, &req) {
		return
	}

	invite, err := h.app.Commands.CreateInvite.Handle(r.Context(), commands.CreateInviteCommand{
		Actor: actor(r),
		Email: req.Email,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusCreated, invite)
}

// Register redeems an invite. It runs without a caller identity.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.readBody(w, r, &req) {
		return
	}

	user, err := h.app.Commands.RegisterUser.Handle(r.Context(), commands.RegisterUserCommand{
		Token:    req.Token,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusCreated, user)
}

// Login checks credentials and returns the user whose id the client then
// sends as X-User-Id.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.readBody(w, r, &req) {
		return
	}

	user, err := h.app.Queries.Authenticate.Execute(r.Context(), queries.AuthenticateQuery{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, user)
}
