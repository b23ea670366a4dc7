package handlers

import (
	"fmt"
	"net/http"

	"github.com/architeacher/nocoflo/internal/usecases/commands"
	"github.com/architeacher/nocoflo/internal/usecases/queries"
)

type (
	registerDatabaseRequest struct {
		Name             string `json:"name"`
		ConnectionString string `json:"connection_string"`
	}

	registerTableRequest struct {
		DBID        int64  `json:"db_id"`
		TableName   string `json:"table_name"`
		DisplayName string `json:"display_name"`
	}
)

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.app.Queries.ListTables.Execute(r.Context(), queries.ListTablesQuery{Actor: actor(r)})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, tables)
}

func (h *Handler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	databases, err := h.app.Queries.ListDatabases.Execute(r.Context(), queries.ListDatabasesQuery{Actor: actor(r)})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, databases)
}

func (h *Handler) RegisterDatabase(w http.ResponseWriter, r *http.Request) {
	var req registerDatabaseRequest
	if !h.readBody(w, r, &req) {
		return
	}

	db, err := h.app.Commands.RegisterDatabase.Handle(r.Context(), commands.RegisterDatabaseCommand{
		Actor:            actor(r),
		Name:             req.Name,
		ConnectionString: req.ConnectionString,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusCreated, db)
}

func (h *Handler) RegisterTable(w http.ResponseWriter, r *http.Request) {
	var req registerTableRequest
	if !h.readBody(w, r, &req) {
		return
	}

	table, err := h.app.Commands.RegisterTable.Handle(r.Context(), commands.RegisterTableCommand{
		Actor:       actor(r),
		DBID:        req.DBID,
		TableName:   req.TableName,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	w.Header().Set("Location", fmt.Sprintf("/%s/tables/%d/schema", apiVersion, table.ID))
	writeData(w, r, http.StatusCreated, table)
}

func (h *Handler) GetTableSchema(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	schema, err := h.app.Queries.GetTableSchema.Execute(r.Context(), queries.GetTableSchemaQuery{
		Actor:   actor(r),
		TableID: tableID,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, schema)
}

func (h *Handler) ListColumns(w http.ResponseWriter, r *http.Request) {
	tableID, ok := h.idParam(w, r, "tableID")
	if !ok {
		return
	}

	columns, err := h.app.Queries.ListColumns.Execute(r.Context(), queries.ListColumnsQuery{
		Actor:   actor(r),
		TableID: tableID,
	})
	if err != nil {
		h.writeError(w, r, err)

		return
	}

	writeData(w, r, http.StatusOK, columns)
}
