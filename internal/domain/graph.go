package domain

// DependencyGraphSnapshot is the persisted form of one user's repository
// dependency DAG. There is exactly one per user, regenerated from the live
// graph on every read so it never drifts.
type DependencyGraphSnapshot struct {
	ID           int64      `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	Repos        StringList `json:"repos" db:"repos"`
	Dependencies EdgeList   `json:"dependencies" db:"dependencies"`
}
