package engine

import (
	"reflect"

	"github.com/petrijr/stepflow/pkg/api"
)

// dataDelta is the set of writes an action body made to its private copy of
// one data partition.
type dataDelta struct {
	set     api.Data
	deleted []string
}

// diffData compares the copy an action received (base) with the same copy
// after the body returned.
func diffData(base, after api.Data) dataDelta {
	var d dataDelta
	for k, v := range after {
		prev, ok := base[k]
		if ok && reflect.DeepEqual(prev, v) {
			continue
		}
		if d.set == nil {
			d.set = api.Data{}
		}
		d.set[k] = v
	}
	for k := range base {
		if _, ok := after[k]; !ok {
			d.deleted = append(d.deleted, k)
		}
	}
	return d
}

// applyTo merges the writes into dst. Keys the body did not touch keep
// whatever value dst holds now.
func (d dataDelta) applyTo(dst api.Data) {
	for k, v := range d.set {
		dst[k] = v
	}
	for _, k := range d.deleted {
		delete(dst, k)
	}
}

// actionResult is the payload of an action-done task.
type actionResult struct {
	output   any
	domain   dataDelta
	internal dataDelta
}
