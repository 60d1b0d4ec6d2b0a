// Package replace holds block replacement definitions: a lookup table from
// block id and data value to the replacements a world converter applies.
//
// Definitions are authored as JSON with comments and trailing commas
// allowed. The strict form is what Load and Parse read; ConvertLoose turns
// the older hand-written format into it.
package replace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/tidwall/jsonc"
)

var ErrInvalidKey = errors.New("replace: key must be an integer or \"*\"")

// ValOrAny is a block id or data value, or the "*" wildcard. It marshals as
// text so it can key JSON objects.
type ValOrAny struct {
	Val int64
	Any bool
}

// Any matches every value.
var Any = ValOrAny{Any: true}

func Val(n int64) ValOrAny { return ValOrAny{Val: n} }

func (v ValOrAny) String() string {
	if v.Any {
		return "*"
	}
	return strconv.FormatInt(v.Val, 10)
}

func (v ValOrAny) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *ValOrAny) UnmarshalText(text []byte) error {
	parsed, err := ParseValOrAny(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func ParseValOrAny(s string) (ValOrAny, error) {
	if s == "*" {
		return Any, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ValOrAny{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return Val(n), nil
}

type Replacements struct {
	Blocks map[ValOrAny]BlockID `json:"blocks"`
}

// BlockID groups the replacements for one block id by data value.
type BlockID struct {
	ID        ValOrAny               `json:"id"`
	BlockData map[ValOrAny]BlockData `json:"block_data"`
}

type BlockData struct {
	Data             ValOrAny           `json:"data"`
	BlockReplacement []BlockReplacement `json:"block_replacement"`
}

// BlockReplacement is one named rewrite. FromNBT narrows the match to blocks
// whose tile entity carries the given values; ToNBT is written on replace.
type BlockReplacement struct {
	Title   string                     `json:"title"`
	ToID    *int64                     `json:"toId"`
	ToData  *int64                     `json:"toData"`
	AddData *int64                     `json:"addData"`
	Delete  bool                       `json:"delete"`
	FromNBT map[string]json.RawMessage `json:"fromNBT"`
	ToNBT   map[string]json.RawMessage `json:"toNBT"`
}

// Parse reads strict definitions. Comments and trailing commas are allowed.
func Parse(data []byte) (*Replacements, error) {
	var r Replacements
	if err := json.Unmarshal(jsonc.ToJSON(data), &r); err != nil {
		return nil, fmt.Errorf("parsing replacements: %w", err)
	}
	if r.Blocks == nil {
		r.Blocks = make(map[ValOrAny]BlockID)
	}
	return &r, nil
}

func Load(path string) (*Replacements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Lookup returns the replacements that apply to a block, most specific
// first: exact id and data, exact id with any data, any id with exact data,
// then the full wildcard.
func (r *Replacements) Lookup(id, data int64) []BlockReplacement {
	var out []BlockReplacement
	for _, idKey := range []ValOrAny{Val(id), Any} {
		block, ok := r.Blocks[idKey]
		if !ok {
			continue
		}
		for _, dataKey := range []ValOrAny{Val(data), Any} {
			if bd, ok := block.BlockData[dataKey]; ok {
				out = append(out, bd.BlockReplacement...)
			}
		}
	}
	return out
}

// Len is the number of replacements across all blocks.
func (r *Replacements) Len() int {
	n := 0
	for _, block := range r.Blocks {
		for _, bd := range block.BlockData {
			n += len(bd.BlockReplacement)
		}
	}
	return n
}
