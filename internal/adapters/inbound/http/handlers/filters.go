package handlers

import (
	"bytes"
	"encoding/json"

	"github.com/architeacher/nocoflo/internal/domain/model"
)

// filterDTO is the wire form of a condition tree. A node with Mode set is a
// group, anything else is a leaf.
type filterDTO struct {
	Field   string      `json:"field"`
	Op      string      `json:"op"`
	Value   any         `json:"value"`
	Mode    string      `json:"mode"`
	Filters []filterDTO `json:"filters"`
}

func (f filterDTO) toFilter() (model.Filter, error) {
	if f.Mode != "" || f.Filters != nil {
		mode, err := model.ParseMode(f.Mode)
		if err != nil {
			return nil, err
		}

		children := make([]model.Filter, 0, len(f.Filters))
		for _, child := range f.Filters {
			filter, err := child.toFilter()
			if err != nil {
				return nil, err
			}

			children = append(children, filter)
		}

		group, err := model.NewConditionGroup(mode, children...)
		if err != nil {
			return nil, err
		}

		return group, nil
	}

	op, err := model.ParseOperator(f.Op)
	if err != nil {
		return nil, err
	}

	condition, err := model.NewCondition(f.Field, op, normalizeValue(f.Value))
	if err != nil {
		return nil, err
	}

	return condition, nil
}

// optionalFilter converts a filter that may be absent from the body.
func optionalFilter(dto *filterDTO) (model.Filter, error) {
	if dto == nil {
		return nil, nil
	}

	return dto.toFilter()
}

// decodeJSON reads numbers as json.Number so integers survive as int64
// instead of being flattened to float64.
func decodeJSON(body []byte, dst any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	return decoder.Decode(dst)
}

func normalizeValue(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}

		if f, err := value.Float64(); err == nil {
			return f
		}

		return value.String()
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = normalizeValue(item)
		}

		return out
	}

	return v
}

func normalizePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}

	out := make(map[string]any, len(payload))
	for column, value := range payload {
		out[column] = normalizeValue(value)
	}

	return out
}
