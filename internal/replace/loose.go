package replace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/tidwall/jsonc"
)

var ErrLooseFormat = errors.New("replace: malformed loose definitions")

// Field names of the loose format. An entry holding any of these is a single
// replacement; otherwise each member is a titled replacement.
var looseFields = map[string]bool{
	"toID":       true,
	"toData":     true,
	"adjustData": true,
	"delete":     true,
	"fromNBT":    true,
	"toNBT":      true,
}

type object = map[string]json.RawMessage

// ConvertLoose converts hand-written definitions of the form
//
//	{"<id>": {"<data>": {"toID": 1, "toData": 2, ...}}}
//
// into the strict form. A data entry may instead hold several titled
// replacements, {"<data>": {"<title>": {...}, ...}}. Untitled replacements
// are titled "<toID>:<toData>", with null for a missing value.
func ConvertLoose(data []byte) (*Replacements, error) {
	var ids object
	if err := decodeObject(jsonc.ToJSON(data), &ids); err != nil {
		return nil, fmt.Errorf("%w: top level: %w", ErrLooseFormat, err)
	}

	r := &Replacements{Blocks: make(map[ValOrAny]BlockID, len(ids))}
	for idText, raw := range ids {
		id, err := ParseValOrAny(idText)
		if err != nil {
			return nil, fmt.Errorf("block id: %w", err)
		}

		var entries object
		if err := decodeObject(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: block %s: %w", ErrLooseFormat, idText, err)
		}

		block := BlockID{ID: id, BlockData: make(map[ValOrAny]BlockData, len(entries))}
		for dataText, raw := range entries {
			dv, err := ParseValOrAny(dataText)
			if err != nil {
				return nil, fmt.Errorf("block %s data: %w", idText, err)
			}
			reps, err := convertEntry(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: block %s:%s: %w", ErrLooseFormat, idText, dataText, err)
			}
			block.BlockData[dv] = BlockData{Data: dv, BlockReplacement: reps}
		}
		r.Blocks[id] = block
	}
	return r, nil
}

func convertEntry(raw json.RawMessage) ([]BlockReplacement, error) {
	var fields object
	if err := decodeObject(raw, &fields); err != nil {
		return nil, err
	}

	if !titled(fields) {
		rep, err := convertReplacement("", fields)
		if err != nil {
			return nil, err
		}
		return []BlockReplacement{rep}, nil
	}

	reps := make([]BlockReplacement, 0, len(fields))
	for _, title := range slices.Sorted(maps.Keys(fields)) {
		var named object
		if err := decodeObject(fields[title], &named); err != nil {
			return nil, fmt.Errorf("%q: %w", title, err)
		}
		rep, err := convertReplacement(title, named)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", title, err)
		}
		reps = append(reps, rep)
	}
	return reps, nil
}

// titled reports whether every member is an object and none is a loose field.
func titled(fields object) bool {
	if len(fields) == 0 {
		return false
	}
	for k, v := range fields {
		if looseFields[k] || !isObject(v) {
			return false
		}
	}
	return true
}

func convertReplacement(title string, fields object) (BlockReplacement, error) {
	rep := BlockReplacement{
		Title:   title,
		ToID:    optInt(fields["toID"]),
		ToData:  optInt(fields["toData"]),
		AddData: optInt(fields["adjustData"]),
		FromNBT: make(map[string]json.RawMessage),
		ToNBT:   make(map[string]json.RawMessage),
	}
	if title == "" {
		rep.Title = jsonText(fields["toID"]) + ":" + jsonText(fields["toData"])
	}

	// Non-boolean values count as false.
	_ = json.Unmarshal(fields["delete"], &rep.Delete)

	for _, m := range []struct {
		key string
		dst map[string]json.RawMessage
	}{{"fromNBT", rep.FromNBT}, {"toNBT", rep.ToNBT}} {
		raw, ok := fields[m.key]
		if !ok || !isObject(raw) {
			continue
		}
		var values object
		if err := json.Unmarshal(raw, &values); err != nil {
			return rep, fmt.Errorf("%s: %w", m.key, err)
		}
		maps.Copy(m.dst, values)
	}
	return rep, nil
}

// optInt returns the value of an integral JSON number.
func optInt(raw json.RawMessage) *int64 {
	if raw == nil || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}

func jsonText(raw json.RawMessage) string {
	if raw == nil {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func decodeObject(raw json.RawMessage, dst *object) error {
	if !isObject(raw) {
		return errors.New("expected an object")
	}
	return json.Unmarshal(raw, dst)
}
