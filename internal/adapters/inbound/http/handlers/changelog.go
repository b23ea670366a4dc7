package handlers

import (
	"net/http"

	"github.com/architeacher/nocoflo/internal/usecases/commands"
	"github.com/architeacher/nocoflo/internal/usecases/queries"
)

type clearChangelogResult struct {
	Deleted int64 `json:"deleted"`
}

func (h *Handler) GetChangelog(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	entries, err := h.app.Queries.GetChangelog.Execute(r.Context(), queries.GetChangelogQuery{
		Actor:   actor(r),
		TableID: tableID,
		Page:    page(r),
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, entries)
}

func (h *Handler) GetRowChangelog(w http.ResponseWriter, r *http.Request) {
	tableID, rowPK, ok := h.rowParams(w, r)
	if !ok {
		return
	}

	entries, err := h.app.Queries.GetRowChangelog.Execute(r.Context(), queries.GetRowChangelogQuery{
		Actor:   actor(r),
		TableID: tableID,
		RowPK:   rowPK,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, entries)
}

func (h *Handler) GetUserChangelog(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.idParam(w, r, "userID")
	if !ok {
		return
	}

	entries, err := h.app.Queries.GetUserChangelog.Execute(r.Context(), queries.GetUserChangelogQuery{
		Actor:  actor(r),
		UserID: userID,
		Page:   page(r),
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, entries)
}

func (h *Handler) ClearChangelog(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	deleted, err := h.app.Commands.ClearChangelog.Handle(r.Context(), commands.ClearChangelogCommand{
		Actor:   actor(r),
		TableID: tableID,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, clearChangelogResult{Deleted: deleted})
}
