package weibo

import "fmt"

// UnitKind identifies the type of work unit the fetch capability understands.
type UnitKind string

const (
	UnitProfile     UnitKind = "profile"
	UnitListPage    UnitKind = "list"
	UnitPostDetail  UnitKind = "detail"
	UnitCommentPage UnitKind = "comments"
)

// Unit describes one logical request: which account or post, which page.
// Its Key is the deterministic request identity used by the response cache.
type Unit struct {
	Kind UnitKind
	// UID is the tracked account, set for profile and list units
	UID string
	// MID is the post, set for detail and comment units
	MID string
	// Cursor is the pagination position (since_id or max_id), empty for the
	// first page
	Cursor string
}

// Key returns the deterministic encoding of the request identity.
func (u Unit) Key() string {
	switch u.Kind {
	case UnitProfile:
		return fmt.Sprintf("profile_%s", u.UID)
	case UnitListPage:
		return fmt.Sprintf("posts_%s_%s", u.UID, orFirst(u.Cursor))
	case UnitPostDetail:
		return fmt.Sprintf("detail_%s", u.MID)
	case UnitCommentPage:
		return fmt.Sprintf("comments_%s_%s", u.MID, orFirst(u.Cursor))
	}
	return fmt.Sprintf("%s_%s_%s_%s", u.Kind, u.UID, u.MID, u.Cursor)
}

func (u Unit) String() string { return u.Key() }

func orFirst(cursor string) string {
	if cursor == "" {
		return "first"
	}
	return cursor
}
