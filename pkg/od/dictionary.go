package od

import "sync"

// ObjectDictionary is an in-memory collection of [Entry] objects keyed by
// index. It is the concrete implementation of the narrow dictionary
// contract pkg/sdo consumes; pkg/sdo never imports this package directly,
// it only depends on the interface shape this type happens to satisfy.
type ObjectDictionary struct {
	mu      sync.RWMutex
	entries map[uint16]*Entry
}

// NewObjectDictionary returns an empty dictionary.
func NewObjectDictionary() *ObjectDictionary {
	return &ObjectDictionary{entries: map[uint16]*Entry{}}
}

// AddVariable inserts a VAR entry at index, with a single implicit
// sub-index 0.
func (od *ObjectDictionary) AddVariable(index uint16, name string, datatype uint8, attribute uint8, value string) (*Entry, error) {
	variable, err := NewVariable(0, name, datatype, attribute, value)
	if err != nil {
		return nil, err
	}
	entry := NewEntry(index, name, variable, ObjectTypeVAR)
	od.mu.Lock()
	od.entries[index] = entry
	od.mu.Unlock()
	return entry, nil
}

// AddRecord inserts an empty RECORD entry at index; sub-entries are
// added afterwards with AddSubObject.
func (od *ObjectDictionary) AddRecord(index uint16, name string) *Entry {
	entry := NewEntry(index, name, NewRecord(), ObjectTypeRECORD)
	od.mu.Lock()
	od.entries[index] = entry
	od.mu.Unlock()
	return entry
}

// AddArray inserts a fixed-length ARRAY entry at index; sub-entries are
// addressed by position with AddSubObject.
func (od *ObjectDictionary) AddArray(index uint16, name string, length uint8) *Entry {
	entry := NewEntry(index, name, NewArray(length), ObjectTypeARRAY)
	od.mu.Lock()
	od.entries[index] = entry
	od.mu.Unlock()
	return entry
}

// AddSubObject appends/sets a sub-entry on a RECORD or ARRAY entry.
func (entry *Entry) AddSubObject(subIndex uint8, name string, datatype uint8, attribute uint8, value string) (*Variable, error) {
	list, ok := entry.object.(*VariableList)
	if !ok {
		return nil, ErrUnsuppAccess
	}
	variable, err := list.AddSubObject(subIndex, name, datatype, attribute, value)
	if err != nil {
		return nil, err
	}
	entry.subEntriesNameMap[name] = subIndex
	return variable, nil
}

// GetEntry looks up the entry at index. This is the lookup half of the
// dictionary contract pkg/sdo's adapter wraps.
func (od *ObjectDictionary) GetEntry(index uint16) (*Entry, bool) {
	od.mu.RLock()
	defer od.mu.RUnlock()
	entry, ok := od.entries[index]
	return entry, ok
}

// RemoveEntry deletes the entry at index, if any.
func (od *ObjectDictionary) RemoveEntry(index uint16) {
	od.mu.Lock()
	defer od.mu.Unlock()
	delete(od.entries, index)
}

// RawToType decodes a wire-format byte string into a Go value for
// datatype, the adapter-facing half of the value codec pkg/sdo's upload
// path calls into when it hands decoded values back to a caller.
func (od *ObjectDictionary) RawToType(data []byte, dataType uint8) (any, error) {
	return DecodeToType(data, dataType)
}

// TypeToRaw encodes a Go value into its wire-format byte string, the
// adapter-facing half of the value codec pkg/sdo's download path calls
// into when a caller supplies a typed value instead of raw bytes. A
// []byte is returned as is; any other value is encoded by its Go type
// through EncodeFromGeneric, and dataType is not consulted.
func (od *ObjectDictionary) TypeToRaw(value any, dataType uint8) ([]byte, error) {
	if raw, ok := value.([]byte); ok {
		return raw, nil
	}
	return EncodeFromGeneric(value)
}
