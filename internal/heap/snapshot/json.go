// Package snapshot loads heap snapshots from the textual JSON graph format
// into an in-memory model.Heap. The binary hprof format is out of scope;
// snapshots are produced by export tooling upstream of this analyzer.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/0xcc/jvm-tools/internal/heap/model"
)

type jsonField struct {
	Name string `json:"name"`
	Type string `json:"type"` // "object", "array", or a scalar type name
}

type jsonClass struct {
	Name   string      `json:"name"`
	Super  string      `json:"super,omitempty"`
	Fields []jsonField `json:"fields,omitempty"`
}

type jsonObject struct {
	ID       model.ID            `json:"id"`
	Class    string              `json:"class"`
	Size     int64               `json:"size"`
	Fields   map[string]model.ID `json:"fields,omitempty"`
	Elements []model.ID          `json:"elements,omitempty"`
	Array    bool                `json:"array,omitempty"`
}

type jsonSnapshot struct {
	Classes []jsonClass  `json:"classes"`
	Objects []jsonObject `json:"objects"`
}

// Load reads a JSON heap snapshot and builds the in-memory heap.
func Load(r io.Reader) (*model.MemHeap, error) {
	var snap jsonSnapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return build(&snap)
}

// LoadFile reads a JSON heap snapshot from disk.
func LoadFile(path string) (*model.MemHeap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	h, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

func build(snap *jsonSnapshot) (*model.MemHeap, error) {
	heap := model.NewMemHeap()

	classes := make(map[string]*model.JavaClass, len(snap.Classes))
	for i, jc := range snap.Classes {
		if jc.Name == "" {
			return nil, fmt.Errorf("class at index %d has no name", i)
		}
		if _, dup := classes[jc.Name]; dup {
			return nil, fmt.Errorf("duplicate class %q", jc.Name)
		}
		classes[jc.Name] = &model.JavaClass{Name: jc.Name}
	}
	for _, jc := range snap.Classes {
		if jc.Super == "" {
			continue
		}
		super, ok := classes[jc.Super]
		if !ok {
			return nil, fmt.Errorf("class %q extends unknown class %q", jc.Name, jc.Super)
		}
		classes[jc.Name].Super = super
	}

	// Compose field lists superclass-first, declaration order preserved.
	declared := make(map[string][]jsonField, len(snap.Classes))
	for _, jc := range snap.Classes {
		declared[jc.Name] = jc.Fields
	}
	done := make(map[string]bool, len(snap.Classes))
	var compose func(c *model.JavaClass) error
	compose = func(c *model.JavaClass) error {
		if done[c.Name] {
			return nil
		}
		done[c.Name] = true
		if c.Super != nil {
			if err := compose(c.Super); err != nil {
				return err
			}
			c.Fields = append(c.Fields, c.Super.Fields...)
		}
		for _, jf := range declared[c.Name] {
			if jf.Name == "" {
				return fmt.Errorf("class %q declares a field with no name", c.Name)
			}
			c.Fields = append(c.Fields, &model.Field{
				Name:           jf.Name,
				DeclaringClass: c.Name,
				Reference:      jf.Type == "object" || jf.Type == "array",
			})
		}
		return nil
	}
	for _, jc := range snap.Classes {
		if err := compose(classes[jc.Name]); err != nil {
			return nil, err
		}
		heap.AddClass(classes[jc.Name])
	}

	seen := make(map[model.ID]bool, len(snap.Objects))
	for idx, jo := range snap.Objects {
		if jo.ID == 0 {
			return nil, fmt.Errorf("object at index %d is missing an id", idx)
		}
		if seen[jo.ID] {
			return nil, fmt.Errorf("duplicate object id %d", jo.ID)
		}
		seen[jo.ID] = true
		class, ok := classes[jo.Class]
		if !ok {
			return nil, fmt.Errorf("object %d has unknown class %q", jo.ID, jo.Class)
		}

		inst := &model.Instance{ID: jo.ID, Class: class, Size: jo.Size}
		if jo.Elements != nil || jo.Array {
			inst.Elements = jo.Elements
			if inst.Elements == nil {
				inst.Elements = []model.ID{}
			}
			heap.AddInstance(inst)
			continue
		}

		inst.Fields = make([]model.FieldValue, 0, len(class.Fields))
		assigned := make(map[string]bool, len(jo.Fields))
		for _, f := range class.Fields {
			fv := model.FieldValue{Field: f}
			if f.Reference {
				fv.ObjectID = jo.Fields[f.Name]
			}
			if _, ok := jo.Fields[f.Name]; ok {
				assigned[f.Name] = true
			}
			inst.Fields = append(inst.Fields, fv)
		}
		for name := range jo.Fields {
			if !assigned[name] {
				return nil, fmt.Errorf("object %d sets field %q not declared by class %q", jo.ID, name, jo.Class)
			}
		}
		heap.AddInstance(inst)
	}

	return heap, nil
}
