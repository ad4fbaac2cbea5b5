package models

// The catalog is a strict three-level hierarchy. Names are unique within
// their parent only; a district name may repeat across regions.

// Region is the top catalog level.
type Region struct {
	ID     int64
	Name   string
	Active bool
}

// District belongs to exactly one region.
type District struct {
	ID       int64
	Name     string
	RegionID int64
	Active   bool
}

// Institution belongs to exactly one district. Institutions are the level
// requests and technicians are scoped to.
type Institution struct {
	ID         int64
	Name       string
	DistrictID int64
	Active     bool
}

// Chain is a fully resolved region → district → institution triple.
type Chain struct {
	Region      Region
	District    District
	Institution Institution
}
