package od

import (
	sdo "github.com/go-sdo/sdoengine/pkg/sdo"
)

// entryAdapter lets a concrete *Entry satisfy sdo.Entry without pkg/sdo
// ever importing this package. Only this file knows about pkg/sdo;
// everything else in pkg/od is sdo-agnostic.
type entryAdapter struct {
	entry *Entry
}

func (a *entryAdapter) SubNumber() uint8 {
	return uint8(a.entry.SubCount())
}

func (a *entryAdapter) DataType(subIndex uint8) (uint8, error) {
	v, err := a.entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return v.DataType, nil
}

func (a *entryAdapter) AccessType(subIndex uint8) (sdo.AccessType, error) {
	v, err := a.entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	switch v.Attribute & AttributeSdoRw {
	case AttributeSdoRw:
		return sdo.AccessReadWrite, nil
	case AttributeSdoR:
		return sdo.AccessReadOnly, nil
	case AttributeSdoW:
		return sdo.AccessWriteOnly, nil
	default:
		return sdo.AccessConstant, nil
	}
}

func (a *entryAdapter) Size(subIndex uint8) (int, error) {
	v, err := a.entry.SubIndex(subIndex)
	if err != nil {
		return 0, err
	}
	return int(v.DataLength()), nil
}

func (a *entryAdapter) Raw(subIndex uint8) ([]byte, error) {
	v, err := a.entry.SubIndex(subIndex)
	if err != nil {
		return nil, err
	}
	return v.Bytes(), nil
}

func (a *entryAdapter) SetRaw(subIndex uint8, data []byte) error {
	v, err := a.entry.SubIndex(subIndex)
	if err != nil {
		return err
	}
	return v.SetRaw(data)
}

func (a *entryAdapter) HighLimit(subIndex uint8) ([]byte, bool) {
	v, err := a.entry.SubIndex(subIndex)
	if err != nil {
		return nil, false
	}
	return v.HighLimit()
}

func (a *entryAdapter) LowLimit(subIndex uint8) ([]byte, bool) {
	v, err := a.entry.SubIndex(subIndex)
	if err != nil {
		return nil, false
	}
	return v.LowLimit()
}

// dictionaryAdapter lets a concrete *ObjectDictionary satisfy
// sdo.Dictionary.
type dictionaryAdapter struct {
	dict *ObjectDictionary
}

// NewSdoDictionary wraps dict so it can be handed to sdo.NewClientFSM /
// sdo.NewServerFSM.
func NewSdoDictionary(dict *ObjectDictionary) sdo.Dictionary {
	return &dictionaryAdapter{dict: dict}
}

func (a *dictionaryAdapter) GetEntry(index uint16) (sdo.Entry, bool) {
	entry, ok := a.dict.GetEntry(index)
	if !ok {
		return nil, false
	}
	return &entryAdapter{entry: entry}, true
}

func (a *dictionaryAdapter) RawToType(data []byte, dataType uint8) (any, error) {
	return a.dict.RawToType(data, dataType)
}

func (a *dictionaryAdapter) TypeToRaw(value any, dataType uint8) ([]byte, error) {
	return a.dict.TypeToRaw(value, dataType)
}

// SetConnectionParameter writes the three standard sub-entries of an
// SDO client/server parameter record, creating the record if index does
// not exist yet.
func (a *dictionaryAdapter) SetConnectionParameter(index uint16, sub1, sub2 uint32, peerID uint8) error {
	entry, ok := a.dict.GetEntry(index)
	if !ok {
		entry = a.dict.AddRecord(index, "sdo connection parameter")
		if _, err := entry.AddSubObject(0, "highest sub-index supported", UNSIGNED8, AttributeSdoR, "3"); err != nil {
			return err
		}
		if _, err := entry.AddSubObject(1, "cob-id 1", UNSIGNED32, AttributeSdoRw, "0"); err != nil {
			return err
		}
		if _, err := entry.AddSubObject(2, "cob-id 2", UNSIGNED32, AttributeSdoRw, "0"); err != nil {
			return err
		}
		if _, err := entry.AddSubObject(3, "node-id", UNSIGNED8, AttributeSdoRw, "0"); err != nil {
			return err
		}
	}
	if err := entry.PutUint32(1, sub1); err != nil {
		return err
	}
	if err := entry.PutUint32(2, sub2); err != nil {
		return err
	}
	return entry.PutUint8(3, peerID)
}

func (a *dictionaryAdapter) RemoveEntry(index uint16) {
	a.dict.RemoveEntry(index)
}
