package content

// Counts is the engagement aggregate of one entity. Comments is zero for
// kinds without a comment counter.
type Counts struct {
	Likes    int64 `json:"likes"`
	Dislikes int64 `json:"dislikes"`
	Comments int64 `json:"comments"`
}
