package models

// Scope is the traversal state of one tree node: the config plus the ids
// discovered while walking. Configs stay untouched; scopes are rebuilt per run.
type Scope struct {
	Config          *TreeConfig
	RecordIDs       []string
	ParentRecordIDs []string
	Depth           int
}

// RootScope starts a traversal at cfg using its declared ids.
func RootScope(cfg *TreeConfig) *Scope {
	return &Scope{
		Config:          cfg,
		RecordIDs:       append([]string(nil), cfg.RecordIDs...),
		ParentRecordIDs: append([]string(nil), cfg.ParentRecordIDs...),
		Depth:           1,
	}
}

// Child derives the scope of a child node. parentIDs are the source ids just
// read at this level.
func (s *Scope) Child(cfg *TreeConfig, parentIDs []string) *Scope {
	return &Scope{
		Config:          cfg,
		RecordIDs:       append([]string(nil), cfg.RecordIDs...),
		ParentRecordIDs: append([]string(nil), parentIDs...),
		Depth:           s.Depth + 1,
	}
}

// FilterIDs returns the ids the source read filters on.
func (s *Scope) FilterIDs() []string {
	if s.Config.ReferenceField != "" {
		return s.ParentRecordIDs
	}
	return s.RecordIDs
}
