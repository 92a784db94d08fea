package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/pkg/api"
)

func TestDiffData(t *testing.T) {
	cases := []struct {
		name    string
		base    api.Data
		after   api.Data
		set     api.Data
		deleted []string
	}{
		{"untouched", api.Data{"a": 1}, api.Data{"a": 1}, nil, nil},
		{"added", api.Data{}, api.Data{"a": 1}, api.Data{"a": 1}, nil},
		{"changed", api.Data{"a": 1}, api.Data{"a": 2}, api.Data{"a": 2}, nil},
		{"set to nil", api.Data{"a": 1}, api.Data{"a": nil}, api.Data{"a": nil}, nil},
		{"deleted", api.Data{"a": 1, "b": 2}, api.Data{"b": 2}, nil, []string{"a"}},
		{"equal slice", api.Data{"a": []int{1}}, api.Data{"a": []int{1}}, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := diffData(tc.base, tc.after)
			require.Equal(t, tc.set, d.set)
			require.Equal(t, tc.deleted, d.deleted)
		})
	}
}

func TestDataDelta_ApplyKeepsOtherKeys(t *testing.T) {
	live := api.Data{"a": 1, "b": 2, "c": 3}
	d := diffData(api.Data{"a": 1, "b": 2}, api.Data{"a": 10})
	d.applyTo(live)

	require.Equal(t, api.Data{"a": 10, "c": 3}, live)
}
