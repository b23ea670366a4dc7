package handlers

import (
	"net/http"

	"github.com/architeacher/nocoflo/internal/domain/model"
	"github.com/architeacher/nocoflo/internal/usecases/commands"
	"github.com/architeacher/nocoflo/internal/usecases/queries"
)

type (
	orderByRequest struct {
		Field     string `json:"field"`
		Ascending *bool  `json:"ascending"`
	}

	queryRowsRequest struct {
		Filter  *filterDTO       `json:"filter"`
		Limit   *int             `json:"limit"`
		Offset  int              `json:"offset"`
		OrderBy []orderByRequest `json:"order_by"`
	}

	insertRowRequest struct {
		Values map[string]any `json:"values"`
	}

	updateRowsRequest struct {
		Filter *filterDTO     `json:"filter"`
		Values map[string]any `json:"values"`
	}

	deleteRowsRequest struct {
		Filter *filterDTO `json:"filter"`
	}

	editCellRequest struct {
		Value any `json:"value"`
	}
)

func (req queryRowsRequest) toSpec() (model.QuerySpec, error) {
	filter, err := optionalFilter(req.Filter)
	if err != nil {
		return model.QuerySpec{}, err
	}

	spec := model.QuerySpec{
		Limit:  req.Limit,
		Offset: req.Offset,
		Filter: filter,
	}

	for _, order := range req.OrderBy {
		spec.OrderBy = append(spec.OrderBy, model.OrderBy{
			Field:     order.Field,
			Ascending: order.Ascending == nil || *order.Ascending,
		})
	}

	return spec, nil
}

func (h *Handler) QueryRows(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	var req queryRowsRequest
	if r.ContentLength != 0 && !h.readBody(w, r, &req) {
		return
	}

	spec, err := req.toSpec()
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	table, err := h.app.Queries.ReadRows.Execute(r.Context(), queries.ReadRowsQuery{
		Actor:   actor(r),
		TableID: tableID,
		Spec:    spec,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, table)
}

func (h *Handler) InsertRow(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	var req insertRowRequest
	if !h.readBody(w, r, &req) {
		return
	}

	affected, err := h.app.Commands.InsertRow.Handle(r.Context(), commands.InsertRowCommand{
		Actor:   actor(r),
		TableID: tableID,
		Payload: normalizePayload(req.Values),
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusCreated, mutationResult{Affected: affected})
}

func (h *Handler) UpdateRows(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	var req updateRowsRequest
	if !h.readBody(w, r, &req) {
		return
	}

	filter, err := optionalFilter(req.Filter)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	affected, err := h.app.Commands.UpdateRows.Handle(r.Context(), commands.UpdateRowsCommand{
		Actor:   actor(r),
		TableID: tableID,
		Filter:  filter,
		Payload: normalizePayload(req.Values),
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, mutationResult{Affected: affected})
}

func (h *Handler) DeleteRows(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	var req deleteRowsRequest
	if !h.readBody(w, r, &req) {
		return
	}

	filter, err := optionalFilter(req.Filter)
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	affected, err := h.app.Commands.DeleteRows.Handle(r.Context(), commands.DeleteRowsCommand{
		Actor:   actor(r),
		TableID: tableID,
		Filter:  filter,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, mutationResult{Affected: affected})
}

func (h *Handler) EditCell(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	rowPK, ok := h.textParam(w, r, "rowPK")
	if !ok {
		return
	}

	column, ok := h.textParam(w, r, "column")
	if !ok {
		return
	}

	var req editCellRequest
	if !h.readBody(w, r, &req) {
		return
	}

	affected, err := h.app.Commands.EditCell.Handle(r.Context(), commands.EditCellCommand{
		Actor:   actor(r),
		TableID: tableID,
		RowPK:   rowPK,
		Column:  column,
		Value:   normalizeValue(req.Value),
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, mutationResult{Affected: affected})
}

func (h *Handler) LockRow(w http.ResponseWriter, r *http.Request) {
	tableID, rowPK, ok := h.rowParams(w, r)
	if !ok {
		return
	}

	_, err := h.app.Commands.LockRow.Handle(r.Context(), commands.LockRowCommand{
		Actor:   actor(r),
		TableID: tableID,
		RowPK:   rowPK,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UnlockRow(w http.ResponseWriter, r *http.Request) {
	tableID, rowPK, ok := h.rowParams(w, r)
	if !ok {
		return
	}

	_, err := h.app.Commands.UnlockRow.Handle(r.Context(), commands.UnlockRowCommand{
		Actor:   actor(r),
		TableID: tableID,
		RowPK:   rowPK,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rowParams(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return 0, "", false
	}

	rowPK, ok := h.textParam(w, r, "rowPK")
	if !ok {
		return 0, "", false
	}

	return tableID, rowPK, true
}
