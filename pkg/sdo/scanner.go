package sdo

const (
	cobIdValidBit    = 1 << 31
	cobIdDynamicBit  = 1 << 30
	cobIdExtendedBit = 1 << 29
	cobIdMask        = 0x7FF

	serverParamStart uint16 = 0x1200
	serverParamEnd   uint16 = 0x127F
	clientParamStart uint16 = 0x1280
	clientParamEnd   uint16 = 0x12FF
)

// connectionParam is one decoded row of a client or server parameter
// record: sub1/sub2 resolved to the two 11-bit identifiers actually
// used on the wire, plus the peer node-id from sub3 when present.
// Sub1/Sub2 keep their record position rather than a tx/rx name,
// because which direction each one is depends on whether the record
// came from the client range or the server range — the caller decides
// that, not the scanner.
type connectionParam struct {
	index uint16
	sub1  uint32
	sub2  uint32
	sub1OK bool
	sub2OK bool
	peerID uint8
}

// decodeCobId validates and masks a raw sub1/sub2 COB-ID field. A COB-ID
// with the valid bit clear (bit 31) is reported absent, not an error —
// CiA 301 leaves unused parameter rows present but inactive. Dynamic
// allocation (bit 30) and 29-bit extended identifiers (bit 29) are
// outside this engine's scope and are a hard error, never silently
// downgraded.
func decodeCobId(raw uint32) (id uint32, present bool, err error) {
	if raw&cobIdValidBit == 0 {
		return 0, false, nil
	}
	if raw&cobIdDynamicBit != 0 || raw&cobIdExtendedBit != 0 {
		return 0, false, ErrUnsupportedCobId
	}
	return raw & cobIdMask, true, nil
}

// resolveCobId applies the CiA 301 convention that a zero low nibble in
// a parameter's COB-ID field means "add the node-id of the peer this
// entry concerns" rather than a literal identifier.
func resolveCobId(id uint32, peerID uint8) uint32 {
	if id&0xF == 0 {
		return id | uint32(peerID)
	}
	return id
}

// scanParameterRange walks [start, end] of dict looking for populated
// SDO connection-parameter records, decoding sub1 and sub2 into usable
// COB-IDs and sub3 into the peer node-id when
// present. Rows whose sub1/sub2 are both absent are skipped; any row
// that names an unsupported COB-ID shape is a hard error, since masking
// it silently would mean talking to the wrong node.
func scanParameterRange(dict Dictionary, start, end uint16) ([]connectionParam, error) {
	var out []connectionParam
	for index := start; index <= end; index++ {
		entry, ok := dict.GetEntry(index)
		if !ok {
			if index == end {
				break
			}
			continue
		}

		var peerID uint8
		if entry.SubNumber() > 3 {
			raw, err := entry.Raw(3)
			if err == nil {
				if v, err := dict.RawToType(raw, 0x05 /* UNSIGNED8 */); err == nil {
					switch u := v.(type) {
					case uint8:
						peerID = u
					case uint64:
						peerID = uint8(u)
					}
				}
			}
		}

		raw1, err := readUint32(dict, entry, 1)
		if err != nil {
			return nil, err
		}
		raw2, err := readUint32(dict, entry, 2)
		if err != nil {
			return nil, err
		}

		id1, ok1, err := decodeCobId(raw1)
		if err != nil {
			return nil, err
		}
		id2, ok2, err := decodeCobId(raw2)
		if err != nil {
			return nil, err
		}
		if !ok1 && !ok2 {
			continue
		}

		out = append(out, connectionParam{
			index:  index,
			sub1:   resolveCobId(id1, peerID),
			sub2:   resolveCobId(id2, peerID),
			sub1OK: ok1,
			sub2OK: ok2,
			peerID: peerID,
		})

		if index == end {
			break
		}
	}
	return out, nil
}

func readUint32(dict Dictionary, entry Entry, subIndex uint8) (uint32, error) {
	raw, err := entry.Raw(subIndex)
	if err != nil {
		return 0, nil
	}
	v, err := dict.RawToType(raw, 0x07 /* UNSIGNED32 */)
	if err != nil {
		return 0, err
	}
	switch u := v.(type) {
	case uint32:
		return u, nil
	case uint64:
		return uint32(u), nil
	default:
		return 0, nil
	}
}

// firstFreeIndex returns the first index in [start, end] not yet
// present in dict, for add_server/add_client to claim.
func firstFreeIndex(dict Dictionary, start, end uint16) (uint16, error) {
	for index := start; ; index++ {
		if _, ok := dict.GetEntry(index); !ok {
			return index, nil
		}
		if index == end {
			break
		}
	}
	return 0, ErrNoFreeParameter
}
