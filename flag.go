package paging

// ChangeKind identifies a storage notification. Kinds are bit flags so a
// ChangeRecorder can be told which of them to keep.
type ChangeKind uint8

const (
	ChangeInitialized ChangeKind = 1 << iota
	ChangePrepended
	ChangeAppended
	ChangePlaceholderInserted
	ChangeInserted

	ChangeAll = ChangeInitialized | ChangePrepended | ChangeAppended |
		ChangePlaceholderInserted | ChangeInserted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInitialized:
		return "initialized"
	case ChangePrepended:
		return "prepended"
	case ChangeAppended:
		return "appended"
	case ChangePlaceholderInserted:
		return "placeholder-inserted"
	case ChangeInserted:
		return "inserted"
	}
	return "mixed"
}

func Set(mask, kind ChangeKind) ChangeKind { return mask | kind }
func Has(mask, kind ChangeKind) bool       { return mask&kind != 0 }
