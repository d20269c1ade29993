package cloud

// QueryKind selects one of the narrow query shapes the remote store can
// usually evaluate server-side.
type QueryKind int

const (
	// QueryAll fetches every record of a kind.
	QueryAll QueryKind = iota

	// QueryByCode matches Family records by join code.
	QueryByCode

	// QueryByFamily matches Membership records by family reference.
	QueryByFamily

	// QueryByRecordID matches a single record by its record name.
	QueryByRecordID
)

// Query is a typed remote query. When the remote store rejects a shape as
// too complex, the client falls back to fetching the kind's records and
// filtering with Matches.
type Query struct {
	Kind  QueryKind
	Value string
}

// ByCode queries Family records by join code.
func ByCode(code string) Query {
	return Query{Kind: QueryByCode, Value: code}
}

// ByFamily queries Membership records by family reference.
func ByFamily(familyID string) Query {
	return Query{Kind: QueryByFamily, Value: familyID}
}

// ByRecordID queries any kind by record name.
func ByRecordID(id string) Query {
	return Query{Kind: QueryByRecordID, Value: id}
}

// All queries every record of a kind.
func All() Query {
	return Query{Kind: QueryAll}
}

// Matches is the client-side filter equivalent of the query.
func (q Query) Matches(r Record) bool {
	switch q.Kind {
	case QueryAll:
		return true
	case QueryByCode:
		code, ok := r.Fields[fieldCode].(string)
		return ok && code == q.Value
	case QueryByFamily:
		ref, ok := r.Fields[fieldFamilyRef].(string)
		return ok && ref == q.Value
	case QueryByRecordID:
		return r.ID == q.Value
	}
	return false
}
