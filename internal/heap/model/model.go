package model

// ID uniquely names one heap object for the duration of an analysis run.
// ID 0 is reserved and always means "no reference".
type ID uint64

// Field describes one declared field of a class.
type Field struct {
	Name           string
	DeclaringClass string
	Reference      bool // object or array typed
}

// JavaClass is a type descriptor from the snapshot, identified by its
// fully-qualified name. Fields are in declaration order, superclass first.
type JavaClass struct {
	Name   string
	Super  *JavaClass
	Fields []*Field
}

// IsSubclassOf reports whether the class or any of its superclasses has the
// given name.
func (c *JavaClass) IsSubclassOf(name string) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur.Name == name {
			return true
		}
	}
	return false
}

// FieldValue is one field slot of an instance. ObjectID is meaningful only
// when the field is reference-typed; 0 means null.
type FieldValue struct {
	Field    *Field
	ObjectID ID
}

// Instance is one allocated heap object. Elements is non-nil exactly when the
// object is an array of references; slot value 0 means null.
type Instance struct {
	ID       ID
	Class    *JavaClass
	Size     int64
	Fields   []FieldValue
	Elements []ID
}

// IsArray reports whether the instance is an array of references.
func (i *Instance) IsArray() bool {
	return i.Elements != nil
}

// Heap is the read-only object graph provider the analysis runs against.
// Lookups are expected to be in-memory and near O(1).
type Heap interface {
	// Classes enumerates every class descriptor in the snapshot.
	Classes() []*JavaClass

	// Instance resolves an object by identity, nil when absent or id is 0.
	Instance(id ID) *Instance
}
