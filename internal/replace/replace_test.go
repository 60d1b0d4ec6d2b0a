package replace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(n int64) *int64 { return &n }

func TestValOrAny(t *testing.T) {
	testCases := []struct {
		text string
		want ValOrAny
	}{
		{"*", Any},
		{"0", Val(0)},
		{"35", Val(35)},
		{"-4", Val(-4)},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			var v ValOrAny
			require.NoError(t, v.UnmarshalText([]byte(tc.text)))
			assert.Equal(t, tc.want, v)

			text, err := v.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tc.text, string(text))
		})
	}

	for _, bad := range []string{"", "**", "1.5", "stone"} {
		_, err := ParseValOrAny(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, "%q", bad)
	}
}

const strictDefinitions = `{
	// wool recolouring
	"blocks": {
		"35": {
			"id": "35",
			"block_data": {
				"*": {"data": "*", "block_replacement": [
					{"title": "wool", "toId": 35, "toData": null, "addData": 1, "delete": false, "fromNBT": {}, "toNBT": {}},
				]},
				"4": {"data": "4", "block_replacement": [
					{"title": "yellow", "toId": 159, "toData": 4, "addData": null, "delete": false, "fromNBT": {}, "toNBT": {}}
				]}
			}
		},
		"*": {
			"id": "*",
			"block_data": {
				"*": {"data": "*", "block_replacement": [
					{"title": "purge", "toId": null, "toData": null, "addData": null, "delete": true,
					 "fromNBT": {"id": "Chest"}, "toNBT": {}}
				]}
			}
		}
	}
}`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(strictDefinitions))
	require.NoError(t, err)
	require.Len(t, r.Blocks, 2)
	assert.Equal(t, 3, r.Len())

	wool := r.Blocks[Val(35)]
	assert.Equal(t, Val(35), wool.ID)
	yellow := wool.BlockData[Val(4)].BlockReplacement[0]
	assert.Equal(t, "yellow", yellow.Title)
	assert.Equal(t, ptr(159), yellow.ToID)
	assert.Nil(t, yellow.AddData)

	purge := r.Blocks[Any].BlockData[Any].BlockReplacement[0]
	assert.True(t, purge.Delete)
	assert.JSONEq(t, `"Chest"`, string(purge.FromNBT["id"]))

	t.Run("errors", func(t *testing.T) {
		_, err := Parse([]byte(`{"blocks": {"stone": {}}}`))
		assert.ErrorIs(t, err, ErrInvalidKey)

		_, err = Parse([]byte(`{"blocks": [`))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		r, err := Parse([]byte(`{}`))
		require.NoError(t, err)
		assert.NotNil(t, r.Blocks)
		assert.Empty(t, r.Lookup(1, 1))
	})
}

func TestLookup(t *testing.T) {
	r, err := Parse([]byte(strictDefinitions))
	require.NoError(t, err)

	titles := func(reps []BlockReplacement) []string {
		var out []string
		for _, rep := range reps {
			out = append(out, rep.Title)
		}
		return out
	}

	assert.Equal(t, []string{"yellow", "wool", "purge"}, titles(r.Lookup(35, 4)))
	assert.Equal(t, []string{"wool", "purge"}, titles(r.Lookup(35, 0)))
	assert.Equal(t, []string{"purge"}, titles(r.Lookup(1, 0)))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replacements.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(strictDefinitions), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, r.Blocks, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConvertLoose(t *testing.T) {
	const loose = `{
		"35": {
			"*": {"toID": 35, "adjustData": 1},
			"4": {"toID": 159, "toData": 4, "fromNBT": {"Color": 4}},
		},
		"54": {
			"0": {
				"trapped": {"toID": 146, "fromNBT": {"Lock": "x"}},
				"plain":   {"delete": true, "toNBT": {"id": "Chest"}}
			}
		}
	}`

	r, err := ConvertLoose([]byte(loose))
	require.NoError(t, err)
	require.Len(t, r.Blocks, 2)

	wool := r.Blocks[Val(35)]
	assert.Equal(t, Val(35), wool.ID)

	wild := wool.BlockData[Any]
	assert.Equal(t, Any, wild.Data)
	require.Len(t, wild.BlockReplacement, 1)
	assert.Equal(t, BlockReplacement{
		Title:   "35:null",
		ToID:    ptr(35),
		AddData: ptr(1),
		FromNBT: map[string]json.RawMessage{},
		ToNBT:   map[string]json.RawMessage{},
	}, wild.BlockReplacement[0])

	// fromNBT alone does not make an entry titled.
	yellow := wool.BlockData[Val(4)].BlockReplacement
	require.Len(t, yellow, 1)
	assert.Equal(t, "159:4", yellow[0].Title)
	assert.JSONEq(t, `4`, string(yellow[0].FromNBT["Color"]))

	chests := r.Blocks[Val(54)].BlockData[Val(0)].BlockReplacement
	require.Len(t, chests, 2)
	assert.Equal(t, "plain", chests[0].Title)
	assert.True(t, chests[0].Delete)
	assert.Nil(t, chests[0].ToID)
	assert.JSONEq(t, `"Chest"`, string(chests[0].ToNBT["id"]))
	assert.Equal(t, "trapped", chests[1].Title)
	assert.Equal(t, ptr(146), chests[1].ToID)

	t.Run("strict output parses back", func(t *testing.T) {
		out, err := json.Marshal(r)
		require.NoError(t, err)

		back, err := Parse(out)
		require.NoError(t, err)
		assert.Equal(t, r, back)
	})

	t.Run("value quirks", func(t *testing.T) {
		r, err := ConvertLoose([]byte(`{"1": {"0": {"toID": "2", "toData": 3.5, "delete": "yes"}}}`))
		require.NoError(t, err)
		rep := r.Blocks[Val(1)].BlockData[Val(0)].BlockReplacement[0]
		assert.Nil(t, rep.ToID)
		assert.Nil(t, rep.ToData)
		assert.False(t, rep.Delete)
		assert.Equal(t, `"2":3.5`, rep.Title)
	})

	t.Run("errors", func(t *testing.T) {
		testCases := []struct {
			name  string
			input string
			err   error
		}{
			{"not an object", `[1, 2]`, ErrLooseFormat},
			{"bad block id", `{"stone": {}}`, ErrInvalidKey},
			{"block not object", `{"1": 5}`, ErrLooseFormat},
			{"bad data key", `{"1": {"x": {}}}`, ErrInvalidKey},
			{"entry not object", `{"1": {"0": true}}`, ErrLooseFormat},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := ConvertLoose([]byte(tc.input))
				assert.ErrorIs(t, err, tc.err)
			})
		}
	})
}
